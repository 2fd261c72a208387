package hrsync

import "context"

// FailureContext locates a failure for the operator.
type FailureContext struct {
	LogID    string
	Filename string
	Step     string
	// BlockingLogID and BlockingStatus are set when a run was refused because
	// another run is in flight.
	BlockingLogID  string
	BlockingStatus Status
}

// Notifier renders and sends operator notifications.
// Send errors are reported to the caller, which logs and ignores them.
type Notifier interface {
	// IsConfigured reports whether sends will reach anyone.
	IsConfigured() bool

	SendApprovalRequest(ctx context.Context, logID string, changes map[string]StructureChange) error
	SendCompletionSummary(ctx context.Context, logID string, results *RunResults, diffCounts map[string]DiffCounts) error
	SendFailure(ctx context.Context, logID string, cause error, fc FailureContext) error
}
