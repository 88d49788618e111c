// internal/scheduler/renderer.go
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"schedule-designgen/internal/cache"
	apperrors "schedule-designgen/internal/common/errors"
	"schedule-designgen/internal/common/logger"
	"schedule-designgen/internal/compiler"
	"schedule-designgen/internal/editor"
	"schedule-designgen/internal/templates"
)

// Renderer produces the artifact for a job that was not served from cache.
type Renderer interface {
	Render(ctx context.Context, job *Job, hash string) (*cache.Artifact, error)
}

type TemplateLoader interface {
	Load(ctx context.Context, tpl templates.Template) (*templates.Document, error)
}

// templateInvalidator is implemented by loaders that cache parsed templates.
type templateInvalidator interface {
	Invalidate(templateID string)
}

type AssetResolver interface {
	Resolve(ctx context.Context, plan *compiler.Plan) error
}

type EditorRunner interface {
	Run(ctx context.Context, req editor.Request) editor.Outcome
}

// Pipeline renders a job: template fetch, compile, asset resolution, then one editor run.
// Formats[0] is stored as the raster and Formats[1], when present, as the document.
type Pipeline struct {
	templates TemplateLoader
	assets    AssetResolver
	editor    EditorRunner
	formats   []string
	opts      compiler.Options
	logger    logger.Logger
	now       func() time.Time
}

func NewPipeline(tl TemplateLoader, ar AssetResolver, er EditorRunner, formats []string, opts compiler.Options, log logger.Logger) *Pipeline {
	normalized := make([]string, 0, len(formats))
	for _, f := range formats {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			normalized = append(normalized, f)
		}
	}
	if len(normalized) == 0 {
		normalized = []string{"png", "psd"}
	}
	return &Pipeline{
		templates: tl,
		assets:    ar,
		editor:    er,
		formats:   normalized,
		opts:      opts,
		logger:    log.WithFields(map[string]interface{}{"component": "render-pipeline"}),
		now:       time.Now,
	}
}

// Render refetches the template of a ForceRefresh job instead of using the loader's cache.
func (p *Pipeline) Render(ctx context.Context, job *Job, hash string) (*cache.Artifact, error) {
	if inv, ok := p.templates.(templateInvalidator); ok && job.ForceRefresh {
		inv.Invalidate(job.Template.ID)
	}
	doc, err := p.templates.Load(ctx, job.Template)
	if err != nil {
		return nil, err
	}

	plan := compiler.Compile(doc.Layers, job.ScheduleData, p.opts)
	if err := p.assets.Resolve(ctx, plan); err != nil {
		return nil, err
	}

	p.logger.Debug("Plan compiled", map[string]interface{}{
		"key":        job.Key,
		"templateId": job.Template.ID,
		"editTexts":  len(plan.EditTexts),
		"deletes":    len(plan.DeleteLayers),
		"replaces":   len(plan.ReplaceLayers),
	})

	outcome := p.editor.Run(ctx, editor.Request{
		Namespace: job.Key,
		Template:  doc.Bytes,
		Script:    editor.BuildScript(job.Key, plan, p.formats),
		Formats:   p.formats,
		Timeout:   job.Timeout,
	})
	if outcome.Kind != editor.OutcomeExported {
		if outcome.Err != nil {
			return nil, outcome.Err
		}
		return nil, fmt.Errorf("editor run ended %s", outcome.Kind)
	}

	for _, f := range p.formats {
		if len(outcome.Exports[f]) == 0 {
			return nil, apperrors.NewExportIncompleteError(job.Key, f)
		}
	}

	a := &cache.Artifact{
		Meta: cache.Meta{
			Key:         job.Key,
			TemplateID:  job.Template.ID,
			Hash:        hash,
			Tags:        cache.TagsFor(plan.ReplaceLayers, doc.Width, doc.Height),
			RangeStart:  job.RangeStart,
			LastUpdated: p.now().UTC(),
		},
		RasterBytes: outcome.Exports[p.formats[0]],
	}
	if len(p.formats) > 1 {
		a.DocumentBytes = outcome.Exports[p.formats[1]]
	}
	return a, nil
}

// stateFor maps a render error to the terminal job state.
func stateFor(err error) State {
	std := apperrors.AsStandard(err)
	switch std.Code {
	case apperrors.ErrCodeProtocolIdleTimeout:
		return StateIdle
	case apperrors.ErrCodeJobTimeout:
		return StateTimedOut
	case apperrors.ErrCodeJobCancelled:
		return StateCancelled
	default:
		return StateFailed
	}
}
