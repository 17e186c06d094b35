package models

import "time"

// RunOutcome is the terminal classification of a verification run.
type RunOutcome string

const (
	RunOutcomeSuccess RunOutcome = "success"
	RunOutcomeFailure RunOutcome = "failure"
)

// RunRecord stores the outcome of a single dashboard verification run.
// Used by the run history store and the -history listing.
type RunRecord struct {
	ID             string        `json:"id"`
	TargetURL      string        `json:"target_url"`
	Outcome        RunOutcome    `json:"outcome"`
	FinalState     string        `json:"final_state"`
	FailedAt       string        `json:"failed_at,omitempty"` // last state reached before the failure
	Artifact       string        `json:"artifact"`
	Error          string        `json:"error,omitempty"`
	ConsoleErrors  int           `json:"console_errors,omitempty"`
	DocumentStatus int           `json:"document_status,omitempty"` // HTTP status of the page on screen at failure
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// Succeeded reports whether the run reached the dashboard screenshot.
func (r *RunRecord) Succeeded() bool {
	return r.Outcome == RunOutcomeSuccess
}
