// internal/scheduler/job.go
package scheduler

import (
	"time"

	"schedule-designgen/internal/cache"
	apperrors "schedule-designgen/internal/common/errors"
	"schedule-designgen/internal/templates"
)

// State is the lifecycle position of a job.
type State string

const (
	StateQueued    State = "QUEUED"
	StateActive    State = "ACTIVE"
	StateSkipped   State = "SKIPPED"
	StateExported  State = "EXPORTED"
	StateTimedOut  State = "TIMED_OUT"
	StateIdle      State = "IDLE"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

func (s State) Terminal() bool {
	return s != StateQueued && s != StateActive
}

// Job asks for one design. Key is the composite cache key (source + range + template) and also
// the editor namespace of the run.
type Job struct {
	Key          string
	Template     templates.Template
	ScheduleData map[string]interface{}
	RangeStart   time.Time
	ForceRefresh bool
	// Timeout is the caller deadline for the editor run; zero uses the scheduler default.
	Timeout time.Duration
	// OnTimeout fires when the run ends idle or past its deadline.
	OnTimeout func(key string)
	// OnComplete fires once with the terminal result.
	OnComplete func(Result)
}

// Result is the terminal outcome of a job. Artifact is set for SKIPPED and EXPORTED.
type Result struct {
	Key      string
	RunID    string
	State    State
	Hash     string
	Artifact *cache.Artifact
	Err      *apperrors.StandardError
	Duration time.Duration
}

// JobInfo is a read-only view of a queued or active job.
type JobInfo struct {
	Key          string    `json:"key"`
	RunID        string    `json:"runId"`
	TemplateID   string    `json:"templateId"`
	State        State     `json:"state"`
	ForceRefresh bool      `json:"forceRefresh"`
	QueuedAt     time.Time `json:"queuedAt"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
}

// Snapshot lists active and queued jobs in promotion order.
type Snapshot struct {
	Active  []JobInfo `json:"active"`
	Queued  []JobInfo `json:"queued"`
	TakenAt time.Time `json:"takenAt"`
}
