// internal/cache/models.go
package cache

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("ARTIFACT_NOT_FOUND")

// Tag labels a spot on the rendered image, in coordinates normalized to [0,1].
type Tag struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

// Meta is everything about an artifact except its bytes.
type Meta struct {
	Key          string    `json:"key"`
	TemplateID   string    `json:"templateId"`
	Hash         string    `json:"hash"`
	Tags         []Tag     `json:"tags"`
	RangeStart   time.Time `json:"rangeStart"`
	LastUpdated  time.Time `json:"lastUpdated"`
	RasterSize   int       `json:"rasterSize"`
	DocumentSize int       `json:"documentSize"`
}

// Artifact is one cached export: the raster image and the editable document.
type Artifact struct {
	Meta
	RasterBytes   []byte `json:"-"`
	DocumentBytes []byte `json:"-"`
}

func (a *Artifact) meta() Meta {
	m := a.Meta
	m.RasterSize = len(a.RasterBytes)
	m.DocumentSize = len(a.DocumentBytes)
	return m
}
