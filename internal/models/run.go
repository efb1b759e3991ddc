package models

import "time"

// RunStatus represents the outcome of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// PipelineRun is the audit row written for every pipeline invocation.
type PipelineRun struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Stages       string     `gorm:"size:100;not null" json:"stages"`
	Status       RunStatus  `gorm:"size:20;not null;index" json:"status"`
	StartedAt    time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Scored       int        `json:"scored"`
	ScoreSkipped int        `json:"score_skipped"`
	Merged       int        `json:"merged"`
	Selected     int        `json:"selected"`
	Error        string     `gorm:"type:text" json:"error,omitempty"`
}

func (PipelineRun) TableName() string { return "pipeline_runs" }

func (r *PipelineRun) IsFinished() bool {
	return r.FinishedAt != nil
}
