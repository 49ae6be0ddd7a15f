package task

import (
	"testing"
	"time"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	all := []Status{StatusPending, StatusExecuting, StatusCompleted, StatusFailed, StatusCancelled}
	allowed := map[Status][]Status{
		StatusPending:   {StatusExecuting, StatusCancelled},
		StatusExecuting: {StatusCompleted, StatusFailed},
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusExecuting, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
	if Status("DONE").IsValid() {
		t.Error("unknown status reported valid")
	}
}

func TestType_Known(t *testing.T) {
	for _, typ := range Types {
		if !typ.Known() {
			t.Errorf("%s not known", typ)
		}
	}
	if Type("UNKNOWN_X").Known() {
		t.Error("UNKNOWN_X reported known")
	}
}

func TestPatch_Apply(t *testing.T) {
	now := time.Now()
	msg := "nope"
	tk := &Task{Status: StatusExecuting, ExecutedAt: &now}
	Patch{Status: StatusFailed, Error: &msg}.Apply(tk)
	if tk.Status != StatusFailed || tk.Error != "nope" {
		t.Fatalf("unexpected task after patch: %#v", tk)
	}
	if tk.ExecutedAt == nil || !tk.ExecutedAt.Equal(now) {
		t.Fatalf("patch without ExecutedAt cleared it: %v", tk.ExecutedAt)
	}
	if tk.Result != nil {
		t.Fatalf("patch without result set one: %#v", tk.Result)
	}
}
