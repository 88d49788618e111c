// internal/api/models.go
package api

import (
	"time"

	"schedule-designgen/internal/cache"
	"schedule-designgen/internal/templates"
)

const submitSchema = `{
  "type": "object",
  "required": ["key", "template", "scheduleData"],
  "properties": {
    "key": {"type": "string", "minLength": 1},
    "template": {
      "type": "object",
      "required": ["id", "sourceUrl", "layersUrl"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "ownerId": {"type": "string"},
        "sourceUrl": {"type": "string", "minLength": 1},
        "layersUrl": {"type": "string", "minLength": 1}
      }
    },
    "scheduleData": {"type": "object"},
    "rangeStart": {"type": "string"},
    "forceRefresh": {"type": "boolean"},
    "timeoutMs": {"type": "integer", "minimum": 0}
  }
}`

type SubmitRequest struct {
	Key          string                 `json:"key"`
	Template     templates.Template     `json:"template"`
	ScheduleData map[string]interface{} `json:"scheduleData"`
	RangeStart   string                 `json:"rangeStart,omitempty"`
	ForceRefresh bool                   `json:"forceRefresh,omitempty"`
	TimeoutMs    int64                  `json:"timeoutMs,omitempty"`
}

type SubmitResponse struct {
	Key    string `json:"key"`
	Status string `json:"status"`
}

type PendingResponse struct {
	Key     string `json:"key"`
	Pending bool   `json:"pending"`
}

type RemoveResponse struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed"`
}

// ArtifactResponse describes a cached design without its bytes.
type ArtifactResponse struct {
	cache.Meta
	HasOverride bool `json:"hasOverride"`
}

var rangeLayouts = []string{time.RFC3339, "2006-01-02"}

func parseRangeStart(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	for _, layout := range rangeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
