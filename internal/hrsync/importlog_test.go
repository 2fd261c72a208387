package hrsync_test

import (
	"errors"
	"testing"
	"time"

	"hrsync/internal/hrsync"
)

var t0 = time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)

func drift() map[string]hrsync.StructureChange {
	return map[string]hrsync.StructureChange{
		"roster.csv": {Added: []string{"location"}, Removed: []string{}},
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to hrsync.Status
		want     bool
	}{
		{hrsync.StatusPending, hrsync.StatusAnalyzing, true},
		{hrsync.StatusPending, hrsync.StatusFailed, true},
		{hrsync.StatusPending, hrsync.StatusCompleted, false},
		{hrsync.StatusAnalyzing, hrsync.StatusAwaitingApproval, true},
		{hrsync.StatusAnalyzing, hrsync.StatusCompleted, true},
		{hrsync.StatusAnalyzing, hrsync.StatusApproved, false},
		{hrsync.StatusAwaitingApproval, hrsync.StatusApproved, true},
		{hrsync.StatusAwaitingApproval, hrsync.StatusCompleted, false},
		{hrsync.StatusAwaitingApproval, hrsync.StatusFailed, true},
		{hrsync.StatusApproved, hrsync.StatusCompleted, true},
		{hrsync.StatusApproved, hrsync.StatusFailed, true},
		{hrsync.StatusCompleted, hrsync.StatusFailed, false},
		{hrsync.StatusFailed, hrsync.StatusPending, false},
	}
	for _, tt := range tests {
		if got := hrsync.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatus(t *testing.T) {
	for _, s := range hrsync.ActiveStatuses {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
	if !hrsync.StatusCompleted.IsTerminal() || !hrsync.StatusFailed.IsTerminal() {
		t.Error("completed and failed must be terminal")
	}
	if hrsync.Status("paused").Valid() {
		t.Error(`Status("paused").Valid() = true, want false`)
	}
}

func TestParseTriggerType(t *testing.T) {
	for _, s := range []string{"manual", "cron"} {
		got, err := hrsync.ParseTriggerType(s)
		if err != nil || string(got) != s {
			t.Errorf("ParseTriggerType(%q) = (%q, %v)", s, got, err)
		}
	}
	if _, err := hrsync.ParseTriggerType("webhook"); err == nil {
		t.Error(`ParseTriggerType("webhook") error = nil, want error`)
	}
}

func TestImportLog_Lifecycle(t *testing.T) {
	t.Run("clean run completes", func(t *testing.T) {
		log := hrsync.NewImportLog("log-1", hrsync.TriggerCron, t0)
		if log.Status != hrsync.StatusPending {
			t.Fatalf("Status = %s, want pending", log.Status)
		}
		if err := log.StartAnalysis(t0); err != nil {
			t.Fatalf("StartAnalysis() error = %v", err)
		}
		results := &hrsync.RunResults{Tables: []hrsync.TableResult{{Table: "employees", Inserts: 3}}}
		if err := log.Complete(results, t0.Add(time.Minute)); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if log.Status != hrsync.StatusCompleted {
			t.Errorf("Status = %s, want completed", log.Status)
		}
		if log.CompletedAt == nil || !log.CompletedAt.Equal(t0.Add(time.Minute)) {
			t.Errorf("CompletedAt = %v, want %v", log.CompletedAt, t0.Add(time.Minute))
		}
		if log.Results.Table("employees").Inserts != 3 {
			t.Errorf("Results not attached: %+v", log.Results)
		}
	})

	t.Run("gated run passes through approval", func(t *testing.T) {
		log := hrsync.NewImportLog("log-2", hrsync.TriggerManual, t0)
		_ = log.StartAnalysis(t0)
		if err := log.RequestApproval(drift(), t0); err != nil {
			t.Fatalf("RequestApproval() error = %v", err)
		}
		if !log.RequiresApproval || !log.HasStructureChanges {
			t.Errorf("RequiresApproval = %v, HasStructureChanges = %v, want true", log.RequiresApproval, log.HasStructureChanges)
		}

		err := log.Complete(&hrsync.RunResults{}, t0)
		if !errors.Is(err, hrsync.ErrInvalidTransition) {
			t.Fatalf("Complete() before approval error = %v, want ErrInvalidTransition", err)
		}

		if err := log.Approve("", t0); err == nil {
			t.Fatal("Approve() without approver error = nil")
		}
		if err := log.Approve("alice", t0.Add(time.Hour)); err != nil {
			t.Fatalf("Approve() error = %v", err)
		}
		if log.ApprovedBy != "alice" || log.ApprovedAt == nil {
			t.Errorf("ApprovedBy = %q, ApprovedAt = %v", log.ApprovedBy, log.ApprovedAt)
		}
		if err := log.Complete(&hrsync.RunResults{}, t0.Add(2*time.Hour)); err != nil {
			t.Fatalf("Complete() after approval error = %v", err)
		}
	})

	t.Run("approval requires drift", func(t *testing.T) {
		log := hrsync.NewImportLog("log-3", hrsync.TriggerManual, t0)
		_ = log.StartAnalysis(t0)
		if err := log.RequestApproval(nil, t0); err == nil {
			t.Error("RequestApproval(nil) error = nil, want error")
		}
		if log.Status != hrsync.StatusAnalyzing {
			t.Errorf("Status = %s, want analyzing", log.Status)
		}
	})

	t.Run("reject fails an awaiting run", func(t *testing.T) {
		log := hrsync.NewImportLog("log-4", hrsync.TriggerManual, t0)
		_ = log.StartAnalysis(t0)
		_ = log.RequestApproval(drift(), t0)

		if err := log.Reject("bob", "unexpected column", t0); err != nil {
			t.Fatalf("Reject() error = %v", err)
		}
		if log.Status != hrsync.StatusFailed {
			t.Errorf("Status = %s, want failed", log.Status)
		}
		if log.ErrorStep != hrsync.StepApproval {
			t.Errorf("ErrorStep = %q, want %q", log.ErrorStep, hrsync.StepApproval)
		}
		want := "structure changes rejected by bob: unexpected column"
		if log.ErrorMessage != want {
			t.Errorf("ErrorMessage = %q, want %q", log.ErrorMessage, want)
		}
	})

	t.Run("reject outside approval is invalid", func(t *testing.T) {
		log := hrsync.NewImportLog("log-5", hrsync.TriggerManual, t0)
		err := log.Reject("bob", "", t0)
		var te *hrsync.TransitionError
		if !errors.As(err, &te) {
			t.Fatalf("Reject() error = %v, want *TransitionError", err)
		}
		if te.From != hrsync.StatusPending {
			t.Errorf("TransitionError.From = %s, want pending", te.From)
		}
	})

	t.Run("terminal states are final", func(t *testing.T) {
		log := hrsync.NewImportLog("log-6", hrsync.TriggerManual, t0)
		if err := log.Fail(hrsync.StepDownload, "timeout", t0); err != nil {
			t.Fatalf("Fail() error = %v", err)
		}
		if err := log.Fail(hrsync.StepDownload, "again", t0); !errors.Is(err, hrsync.ErrInvalidTransition) {
			t.Errorf("second Fail() error = %v, want ErrInvalidTransition", err)
		}
		if log.ErrorMessage != "timeout" {
			t.Errorf("ErrorMessage = %q, want timeout", log.ErrorMessage)
		}
	})
}

func TestImportError(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := &hrsync.ImportError{Kind: hrsync.KindConnectivity, Step: hrsync.StepDownload, File: "roster.csv", Cause: cause}

	want := "connectivity error during download (roster.csv): dial tcp: i/o timeout"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if !hrsync.IsRetryable(err) {
		t.Error("IsRetryable(connectivity) = false")
	}
	if hrsync.IsRetryable(&hrsync.ImportError{Kind: hrsync.KindParse}) {
		t.Error("IsRetryable(parse) = true")
	}
}
