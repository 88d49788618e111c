package catalog

import (
	"path/filepath"
	"testing"

	"schedule-designgen/internal/templates"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestEntry(id string) Entry {
	return Entry{
		Template: templates.Template{
			ID:        id,
			OwnerID:   "studio-1",
			SourceURL: "https://cdn.example.com/" + id + ".psd",
			LayersURL: "https://cdn.example.com/" + id + ".json",
		},
		DisplayName: "Weekly schedule",
	}
}

func TestCatalog_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "catalog.json")

	c := New()
	require.NoError(t, c.Add(createTestEntry("weekly")))
	require.NoError(t, c.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	e, ok := loaded.Find("weekly")
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/weekly.psd", e.SourceURL)
	assert.Equal(t, "studio-1", e.OwnerID)

	_, ok = loaded.Find("daily")
	assert.False(t, ok)
}

func TestCatalog_AddDuplicate(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(createTestEntry("weekly")))
	assert.Error(t, c.Add(createTestEntry("weekly")))
}

func TestCatalog_Validate(t *testing.T) {
	badURL := createTestEntry("daily")
	badURL.LayersURL = "daily.json"
	unnamed := createTestEntry("monthly")
	unnamed.DisplayName = ""

	tests := []struct {
		name    string
		entries []Entry
		wantErr string
	}{
		{name: "valid", entries: []Entry{createTestEntry("weekly"), createTestEntry("daily")}},
		{name: "empty", entries: nil, wantErr: "no templates"},
		{name: "duplicate", entries: []Entry{createTestEntry("weekly"), createTestEntry("weekly")}, wantErr: "duplicate"},
		{name: "missing id", entries: []Entry{createTestEntry("")}, wantErr: "missing required field"},
		{name: "missing display name", entries: []Entry{unnamed}, wantErr: "missing required field: displayName"},
		{name: "relative url", entries: []Entry{badURL}, wantErr: "invalid layersUrl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Catalog{Entries: tt.entries}
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
