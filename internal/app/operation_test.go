package app

import (
	"errors"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name       string
		operation  string
		parameters string
	}{
		{
			name:       "with parameters",
			operation:  "ApproveImport",
			parameters: "id-0001",
		},
		{
			name:       "empty parameters",
			operation:  "RunImport",
			parameters: "",
		},
	}

	start := time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.operation, tt.parameters, start)

			if op.Name != tt.operation {
				t.Errorf("Name = %q, want %q", op.Name, tt.operation)
			}
			if op.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", op.Parameters, tt.parameters)
			}
			if op.Status != "success" {
				t.Errorf("Status = %q, want %q", op.Status, "success")
			}
			if got := op.Duration(start.Add(90 * time.Second)); got != 90*time.Second {
				t.Errorf("Duration() = %v, want 1m30s", got)
			}
		})
	}
}

func TestOperation_Track(t *testing.T) {
	op := NewOperation("RunImport", "", time.Now())

	if err := op.Track(nil); err != nil {
		t.Fatalf("Track(nil) = %v", err)
	}
	if op.Status != "success" {
		t.Errorf("Status after nil = %q, want success", op.Status)
	}

	want := errors.New("boom")
	if err := op.Track(want); err != want {
		t.Errorf("Track() = %v, want %v", err, want)
	}
	if op.Status != "error" {
		t.Errorf("Status after error = %q, want error", op.Status)
	}

	// A later success does not clear the failure.
	op.Track(nil)
	if op.Status != "error" {
		t.Errorf("Status = %q, want error to stick", op.Status)
	}
}
