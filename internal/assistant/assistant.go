// Package assistant declares the planning/chat collaborator: a pure remote
// call that turns a dataset summary into a cleaning plan, or a failed cell
// into a suggested fix. Failures, including a missing credential, propagate
// to the caller as typed errors; the sync layer never handles them.
package assistant

import (
	"context"
	"errors"

	"datamentor/internal/sandbox"
)

// CleaningStep is one plan row: a markdown explanation plus runnable code.
type CleaningStep struct {
	Name        string `json:"step_name"`
	Explanation string `json:"explanation"`
	Code        string `json:"code"`
}

// CleaningPlan is the assistant's full response to a dataset summary.
type CleaningPlan struct {
	Title string         `json:"plan_title"`
	Steps []CleaningStep `json:"steps"`
}

// FixSuggestion is the assistant's response to a failed cell.
type FixSuggestion struct {
	Explanation   string `json:"explanation"`
	SuggestedCode string `json:"suggested_code"`
}

// Planner is the collaborator interface consumed by callers.
type Planner interface {
	Plan(ctx context.Context, summary sandbox.Summary) (CleaningPlan, error)
	Fix(ctx context.Context, code, errMsg string, summary sandbox.Summary, history []string) (FixSuggestion, error)
}

// ErrMissingCredential indicates no API key was configured. It is surfaced to
// the caller rather than degraded around: planning simply isn't available.
var ErrMissingCredential = errors.New("assistant: missing API credential")
