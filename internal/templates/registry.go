// Package templates fetches template files and their layer manifests, with a TTL cache.
package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "schedule-designgen/internal/common/errors"
	"schedule-designgen/internal/common/logger"
	"schedule-designgen/internal/common/validation"
)

var (
	ErrMissingSource = errors.New("TEMPLATE_SOURCE_MISSING")
	ErrMissingLayers = errors.New("TEMPLATE_LAYERS_MISSING")
)

const manifestSchema = `{
  "type": "object",
  "required": ["width", "height", "layers"],
  "properties": {
    "width":  {"type": "number", "minimum": 1},
    "height": {"type": "number", "minimum": 1},
    "layers": {"type": "array", "items": {"$ref": "#/definitions/layer"}}
  },
  "definitions": {
    "layer": {
      "type": "object",
      "properties": {
        "id":       {"type": "string"},
        "name":     {"type": "string"},
        "kind":     {"enum": ["text", "image", "group"]},
        "children": {"type": "array", "items": {"$ref": "#/definitions/layer"}}
      }
    }
  }
}`

// Getter is the download primitive; *http.Client from common/http satisfies it.
type Getter interface {
	GetBytes(ctx context.Context, url string) ([]byte, string, error)
}

type cacheEntry struct {
	doc      *Document
	loadedAt time.Time
}

type Registry struct {
	client   Getter
	cacheTTL time.Duration
	logger   logger.Logger
	schema   *validation.Schema
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

func NewRegistry(client Getter, cacheTTL time.Duration, log logger.Logger) (*Registry, error) {
	schema, err := validation.Compile(manifestSchema)
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	return &Registry{
		client:   client,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "template-registry"}),
		schema:   schema,
		now:      time.Now,
		cache:    make(map[string]*cacheEntry),
	}, nil
}

// Load returns the template document, served from cache while younger than the TTL.
func (r *Registry) Load(ctx context.Context, tpl Template) (*Document, error) {
	r.mu.RLock()
	if entry, ok := r.cache[tpl.ID]; ok && r.now().Sub(entry.loadedAt) < r.cacheTTL {
		r.mu.RUnlock()
		return entry.doc, nil
	}
	r.mu.RUnlock()

	if tpl.SourceURL == "" {
		return nil, apperrors.NewTemplateInvalidError(tpl.ID, ErrMissingSource)
	}
	if tpl.LayersURL == "" {
		return nil, apperrors.NewTemplateInvalidError(tpl.ID, ErrMissingLayers)
	}

	raw, _, err := r.client.GetBytes(ctx, tpl.SourceURL)
	if err != nil {
		return nil, apperrors.NewTemplateFetchFailedError(tpl.ID, err)
	}
	manifestBytes, _, err := r.client.GetBytes(ctx, tpl.LayersURL)
	if err != nil {
		return nil, apperrors.NewTemplateFetchFailedError(tpl.ID, err)
	}

	manifest, err := r.parseManifest(manifestBytes)
	if err != nil {
		return nil, apperrors.NewTemplateInvalidError(tpl.ID, err)
	}

	doc := &Document{
		TemplateID: tpl.ID,
		Bytes:      raw,
		Width:      manifest.Width,
		Height:     manifest.Height,
		Layers:     manifest.Layers,
	}

	r.mu.Lock()
	r.cache[tpl.ID] = &cacheEntry{doc: doc, loadedAt: r.now()}
	r.mu.Unlock()

	r.logger.Info("Template loaded", map[string]interface{}{
		"templateId": tpl.ID,
		"ownerId":    tpl.OwnerID,
		"bytes":      len(raw),
		"layers":     len(manifest.Layers),
	})
	return doc, nil
}

func (r *Registry) parseManifest(data []byte) (*Manifest, error) {
	result, err := r.schema.ValidateBytes(data)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("manifest validation failed: %v", result.GetErrorMessages())
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Invalidate drops a cached template so the next Load refetches it.
func (r *Registry) Invalidate(templateID string) {
	r.mu.Lock()
	delete(r.cache, templateID)
	r.mu.Unlock()
}
