// Package compiler turns a template layer tree and schedule data into an edit plan.
package compiler

import (
	"strings"
	"time"
)

// Options tune formatting. The zero value uses the defaults and reads the time zone from the data.
type Options struct {
	Location   *time.Location
	TimeLayout string
	DateLayout string
	// TagFields are looked up in an image layer's context to label the placed asset.
	TagFields []string
}

var defaultTagFields = []string{"instagram", "instagram_handle", "handle"}

type compiler struct {
	opts Options
	root map[string]interface{}
	plan *Plan
}

// Compile walks layers depth first and never fails: layers that cannot be bound are skipped.
// The same inputs always produce the same plan.
func Compile(layers []Layer, data map[string]interface{}, opts Options) *Plan {
	if data == nil {
		data = map[string]interface{}{}
	}
	if opts.Location == nil {
		opts.Location = locationFrom(data)
	}
	if opts.TimeLayout == "" {
		opts.TimeLayout = DefaultTimeLayout
	}
	if opts.DateLayout == "" {
		opts.DateLayout = DefaultDateLayout
	}
	if len(opts.TagFields) == 0 {
		opts.TagFields = defaultTagFields
	}

	c := &compiler{
		opts: opts,
		root: data,
		plan: &Plan{
			EditTexts:     []EditText{},
			DeleteLayers:  []DeleteLayer{},
			ReplaceLayers: []ReplaceLayer{},
			LoadAssets:    []LoadAsset{},
			CropImages:    []CropImage{},
			AssetRequests: []AssetRequest{},
		},
	}
	for _, layer := range layers {
		c.visit(layer, data, false)
	}
	return c.plan
}

func (c *compiler) visit(layer Layer, ctx interface{}, nested bool) {
	if strings.TrimSpace(layer.ID) == "" || strings.TrimSpace(layer.Name) == "" {
		return
	}

	b, ok := parseBinding(layer.Name)
	if !ok {
		c.visitChildren(layer, ctx, nested)
		return
	}

	value, res := c.lookup(ctx, b, nested)
	switch res {
	case missingElement:
		c.plan.DeleteLayers = append(c.plan.DeleteLayers, DeleteLayer{LayerID: layer.ID, LayerName: layer.Name})
		return
	case unbound:
		c.visitChildren(layer, ctx, nested)
		return
	}

	if isContainer(value) {
		c.visitChildren(layer, value, true)
		return
	}
	if layer.Kind == KindGroup {
		c.visitChildren(layer, ctx, nested)
		return
	}
	c.scalar(layer, b, value, ctx)
}

// lookup resolves against the current context and falls back to the root for plain keys,
// so site-wide fields stay reachable inside repeated groups.
func (c *compiler) lookup(ctx interface{}, b binding, nested bool) (interface{}, resolution) {
	value, res := resolve(ctx, b.segments)
	if res == unbound && nested && !b.indexed() {
		return resolve(c.root, b.segments)
	}
	return value, res
}

func (c *compiler) visitChildren(layer Layer, ctx interface{}, nested bool) {
	for _, child := range layer.Children {
		c.visit(child, ctx, nested)
	}
}

func (c *compiler) scalar(layer Layer, b binding, value interface{}, ctx interface{}) {
	if kind := classifyField(b.field()); kind != notDate {
		if t, ok := parseTime(value, c.opts.Location); ok {
			c.editText(layer, c.formatTime(t.In(c.opts.Location), kind, b.directive))
			return
		}
	}

	text, ok := scalarText(value)
	if !ok {
		return
	}

	if layer.Kind == KindImage {
		if strings.TrimSpace(text) == "" {
			return
		}
		c.requestAsset(layer, strings.TrimSpace(text), c.owner(ctx, b))
		return
	}
	c.editText(layer, text)
}

func (c *compiler) formatTime(t time.Time, kind dateKind, directive string) string {
	if directive != "" {
		return formatDirective(t, directive)
	}
	if kind == calendarDate {
		return t.Format(c.opts.DateLayout)
	}
	return t.Format(c.opts.TimeLayout)
}

func (c *compiler) editText(layer Layer, value string) {
	c.plan.EditTexts = append(c.plan.EditTexts, EditText{
		LayerID:   layer.ID,
		LayerName: layer.Name,
		Value:     value,
	})
}

func (c *compiler) requestAsset(layer Layer, url string, ctx interface{}) {
	req := AssetRequest{
		Index:     len(c.plan.AssetRequests),
		LayerID:   layer.ID,
		LayerName: layer.Name,
		Bounds:    layer.Bounds,
		URL:       url,
		SourceID:  c.rootString("source_id", "source"),
	}
	if m, ok := asMap(ctx); ok {
		req.EntityID, _ = scalarText(m["id"])
		for _, field := range c.opts.TagFields {
			if tag, ok := scalarText(m[field]); ok && strings.TrimSpace(tag) != "" {
				req.Tag = strings.TrimSpace(tag)
				break
			}
		}
	}
	c.plan.AssetRequests = append(c.plan.AssetRequests, req)
}

// owner is the element holding the bound field, so flat paths like "event#1.photo" still see
// the event's id and handle.
func (c *compiler) owner(ctx interface{}, b binding) interface{} {
	if len(b.segments) < 2 {
		return ctx
	}
	parent := b.segments[:len(b.segments)-1]
	if v, res := resolve(ctx, parent); res == resolved {
		return v
	}
	if v, res := resolve(c.root, parent); res == resolved {
		return v
	}
	return ctx
}

func (c *compiler) rootString(keys ...string) string {
	for _, k := range keys {
		if s, ok := scalarText(c.root[k]); ok && s != "" {
			return s
		}
	}
	return ""
}
