// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"schedule-designgen/internal/common/validation"
	"schedule-designgen/internal/templates"
)

// Catalog is a JSON file listing the templates a deployment renders.
type Catalog struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Entries     []Entry `json:"templates"`
}

type Entry struct {
	templates.Template
	DisplayName string   `json:"displayName"`
	Tags        []string `json:"tags,omitempty"`
}

var entrySchema = validation.MustCompile(`{
  "type": "object",
  "required": ["id", "sourceUrl", "layersUrl", "displayName"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "ownerId": {"type": "string"},
    "sourceUrl": {"type": "string", "minLength": 1},
    "layersUrl": {"type": "string", "minLength": 1},
    "displayName": {"type": "string", "minLength": 1},
    "tags": {"type": "array", "items": {"type": "string"}}
  }
}`)

func New() *Catalog {
	return &Catalog{
		Version:     "1.0.0",
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Entries:     []Entry{},
	}
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the catalog, creating parent directories as needed.
func (c *Catalog) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

func (c *Catalog) Find(id string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

func (c *Catalog) Add(e Entry) error {
	if _, exists := c.Find(e.ID); exists {
		return fmt.Errorf("template with ID %s already exists", e.ID)
	}
	c.Entries = append(c.Entries, e)
	c.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// Validate checks that every entry has its required fields, a unique id and absolute template URLs.
func (c *Catalog) Validate() error {
	if len(c.Entries) == 0 {
		return fmt.Errorf("catalog contains no templates")
	}

	ids := make(map[string]bool)
	for _, e := range c.Entries {
		result, err := entrySchema.ValidateInput(e)
		if err != nil {
			return err
		}
		if !result.Valid {
			return fmt.Errorf("template %q missing required field: %s", e.ID, result.Errors[0].Field)
		}
		if ids[e.ID] {
			return fmt.Errorf("duplicate template ID: %s", e.ID)
		}
		ids[e.ID] = true

		if !validation.ValidateURL(e.SourceURL) {
			return fmt.Errorf("template %s has invalid sourceUrl %q", e.ID, e.SourceURL)
		}
		if !validation.ValidateURL(e.LayersURL) {
			return fmt.Errorf("template %s has invalid layersUrl %q", e.ID, e.LayersURL)
		}
	}
	return nil
}
