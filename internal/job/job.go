package job

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Snapshot is a read-only copy of a job's state, safe to hand to
// concurrent readers while the owning worker keeps mutating the job.
type Snapshot struct {
	ID                string     `json:"id"`
	Status            Status     `json:"status"`
	ProgressPercent   int        `json:"progressPercent"`
	CurrentKeyword    string     `json:"currentKeyword"`
	CompletedKeywords int        `json:"completedKeywords"`
	TotalKeywords     int        `json:"totalKeywords"`
	StartedAt         time.Time  `json:"startedAt"`
	EndedAt           *time.Time `json:"endedAt,omitempty"`
	Error             string     `json:"error,omitempty"`
	Warnings          []string   `json:"warnings,omitempty"`
}
