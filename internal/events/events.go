// Package events publishes ingestion and validation notifications.
package events

import "time"

// SessionSummary describes what was appended for one session of a subject.
type SessionSummary struct {
	Session  string    `json:"session"`
	IMURows  int       `json:"imu_rows"`
	Segments int       `json:"segments"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// SubjectIngested is emitted after a subject's batch is committed.
type SubjectIngested struct {
	RunID      string           `json:"run_id"`
	SubjectID  string           `json:"subject_id"`
	Sessions   []SessionSummary `json:"sessions"`
	OffGrid    int              `json:"off_grid"`
	IngestedAt time.Time        `json:"ingested_at"`
}

// ValidationCompleted is emitted after every validation run.
type ValidationCompleted struct {
	RunID       string         `json:"run_id"`
	Clean       bool           `json:"clean"`
	Violations  map[string]int `json:"violations"`
	Messages    []string       `json:"messages,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}
