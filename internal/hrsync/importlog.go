package hrsync

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an import run.
type Status string

const (
	StatusPending          Status = "pending"
	StatusAnalyzing        Status = "analyzing"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// ActiveStatuses are the non-terminal states. At most one import log may be
// in any of them at a time.
var ActiveStatuses = []Status{StatusPending, StatusAnalyzing, StatusAwaitingApproval, StatusApproved}

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAnalyzing, StatusAwaitingApproval, StatusApproved, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// transitions lists the allowed next states for each state.
var transitions = map[Status][]Status{
	StatusPending:          {StatusAnalyzing, StatusFailed},
	StatusAnalyzing:        {StatusAwaitingApproval, StatusCompleted, StatusFailed},
	StatusAwaitingApproval: {StatusApproved, StatusFailed},
	StatusApproved:         {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from → to is an allowed transition.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TriggerType records what started an import run.
type TriggerType string

const (
	TriggerManual TriggerType = "manual"
	TriggerCron   TriggerType = "cron"
)

// ParseTriggerType validates a trigger name.
func ParseTriggerType(s string) (TriggerType, error) {
	switch TriggerType(s) {
	case TriggerManual, TriggerCron:
		return TriggerType(s), nil
	}
	return "", fmt.Errorf("unknown trigger type: %q", s)
}

// ImportLog is one import attempt.
type ImportLog struct {
	ID                  string
	TriggerType         TriggerType
	Status              Status
	HasStructureChanges bool
	StructureChanges    map[string]StructureChange // keyed by source filename
	RequiresApproval    bool
	ApprovedBy          string
	ApprovedAt          *time.Time
	CompletedAt         *time.Time
	Results             *RunResults
	ErrorStep           string
	ErrorMessage        string
	StartedAt           time.Time
	UpdatedAt           time.Time
}

// NewImportLog creates a pending import log.
func NewImportLog(id string, trigger TriggerType, now time.Time) *ImportLog {
	return &ImportLog{
		ID:          id,
		TriggerType: trigger,
		Status:      StatusPending,
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

func (l *ImportLog) moveTo(to Status, now time.Time) error {
	if !CanTransition(l.Status, to) {
		return &TransitionError{LogID: l.ID, From: l.Status, To: to}
	}
	l.Status = to
	l.UpdatedAt = now
	return nil
}

// StartAnalysis moves a pending log to analyzing.
func (l *ImportLog) StartAnalysis(now time.Time) error {
	return l.moveTo(StatusAnalyzing, now)
}

// RequestApproval records the structural drift and parks the run until an
// operator acts on it.
func (l *ImportLog) RequestApproval(changes map[string]StructureChange, now time.Time) error {
	if len(changes) == 0 {
		return fmt.Errorf("requesting approval for %s: no structure changes", l.ID)
	}
	if err := l.moveTo(StatusAwaitingApproval, now); err != nil {
		return err
	}
	l.HasStructureChanges = true
	l.StructureChanges = changes
	l.RequiresApproval = true
	return nil
}

// Approve records the operator's authorization to continue.
func (l *ImportLog) Approve(by string, now time.Time) error {
	if by == "" {
		return fmt.Errorf("approving %s: approver is required", l.ID)
	}
	if err := l.moveTo(StatusApproved, now); err != nil {
		return err
	}
	l.ApprovedBy = by
	at := now
	l.ApprovedAt = &at
	return nil
}

// Reject ends a run that is awaiting approval without writing anything.
func (l *ImportLog) Reject(by, reason string, now time.Time) error {
	if l.Status != StatusAwaitingApproval {
		return &TransitionError{LogID: l.ID, From: l.Status, To: StatusFailed}
	}
	if by == "" {
		return fmt.Errorf("rejecting %s: operator is required", l.ID)
	}
	msg := "structure changes rejected by " + by
	if reason != "" {
		msg += ": " + reason
	}
	return l.Fail(StepApproval, msg, now)
}

// Complete finalizes a run with its per-table results.
func (l *ImportLog) Complete(results *RunResults, now time.Time) error {
	if l.Status == StatusAnalyzing && l.RequiresApproval {
		// Gated runs must pass through approval before writing.
		return &TransitionError{LogID: l.ID, From: l.Status, To: StatusCompleted}
	}
	if err := l.moveTo(StatusCompleted, now); err != nil {
		return err
	}
	l.Results = results
	at := now
	l.CompletedAt = &at
	return nil
}

// Fail moves any non-terminal run to failed, keeping the error detail.
func (l *ImportLog) Fail(step, message string, now time.Time) error {
	if err := l.moveTo(StatusFailed, now); err != nil {
		return err
	}
	l.ErrorStep = step
	l.ErrorMessage = message
	at := now
	l.CompletedAt = &at
	return nil
}
