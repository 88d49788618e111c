// internal/templates/models.go
package templates

import "schedule-designgen/internal/compiler"

// Template identifies a design template and where its files live.
type Template struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId"`
	SourceURL string `json:"sourceUrl"`
	LayersURL string `json:"layersUrl"`
}

// Manifest is the layer tree exported alongside a template file.
type Manifest struct {
	Width  float64          `json:"width"`
	Height float64          `json:"height"`
	Layers []compiler.Layer `json:"layers"`
}

// Document is a fetched template: the raw file handed to the editor plus its layer tree.
type Document struct {
	TemplateID string
	Bytes      []byte
	Width      float64
	Height     float64
	Layers     []compiler.Layer
}
