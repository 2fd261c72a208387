package hrsync

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups for rows that do not exist.
var ErrNotFound = errors.New("not found")

// ErrorKind classifies failures of an import run.
type ErrorKind string

const (
	KindConnectivity ErrorKind = "connectivity"
	KindParse        ErrorKind = "parse"
	KindStore        ErrorKind = "store"
	KindConflict     ErrorKind = "conflict"
	KindState        ErrorKind = "state"
	KindApproval     ErrorKind = "approval"
)

// Steps reported in failure context.
const (
	StepLock      = "lock"
	StepBegin     = "begin"
	StepList      = "list"
	StepDownload  = "download"
	StepParse     = "parse"
	StepStructure = "structure"
	StepApproval  = "approval"
	StepResume    = "resume"
	StepDiff      = "diff"
	StepUpsert    = "upsert"
	StepPersist   = "persist"
	StepSnapshot  = "snapshot"
	StepFinalize  = "finalize"
)

// ImportError is an unrecoverable failure of one step of an import run.
type ImportError struct {
	Kind  ErrorKind
	Step  string
	File  string
	Cause error
}

func (e *ImportError) Error() string {
	msg := fmt.Sprintf("%s error during %s", e.Kind, e.Step)
	if e.File != "" {
		msg += " (" + e.File + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ImportError) Unwrap() error { return e.Cause }

// Retryable reports whether a single retry may succeed.
func (e *ImportError) Retryable() bool { return e.Kind == KindConnectivity }

func newImportError(kind ErrorKind, step, file string, cause error) *ImportError {
	return &ImportError{Kind: kind, Step: step, File: file, Cause: cause}
}

// IsRetryable checks whether err (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Retryable()
	}
	return false
}

// BlockedError is returned when another import is already in flight.
type BlockedError struct {
	LogID  string
	Status Status
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("import blocked: run %s is %s", e.LogID, e.Status)
}

// TransitionError reports a state machine violation.
type TransitionError struct {
	LogID string
	From  Status
	To    Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("import %s: invalid transition %s -> %s", e.LogID, e.From, e.To)
}

// ErrInvalidTransition matches every *TransitionError.
var ErrInvalidTransition = errors.New("invalid import log transition")

// Is makes errors.Is(err, ErrInvalidTransition) succeed.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ErrConcurrentUpdate is returned when a compare-and-set on an import log
// finds the stored status changed underneath.
var ErrConcurrentUpdate = errors.New("import log was modified concurrently")
