package transition

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		prev      *bool
		curr      bool
		wantState State
		wantText  string
		alertable bool
	}{
		{"steady ok", boolPtr(true), true, TrueToTrue, "API is reachable", false},
		{"went down", boolPtr(true), false, TrueToFalse, "API is not reachable", true},
		{"recovered", boolPtr(false), true, FalseToTrue, "API is reachable", true},
		{"steady failure", boolPtr(false), false, FalseToFalse, "API is not reachable", false},
		{"first round ok", nil, true, FalseToTrue, "API is reachable", true},
		{"first round failure", nil, false, FalseToFalse, "API is not reachable", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Evaluate(tt.prev, tt.curr, "API", "is reachable", "is not reachable")
			if msg.State != tt.wantState {
				t.Errorf("state = %v, want %v", msg.State, tt.wantState)
			}
			if msg.Text != tt.wantText {
				t.Errorf("text = %q, want %q", msg.Text, tt.wantText)
			}
			if msg.State.Alertable() != tt.alertable {
				t.Errorf("alertable = %v, want %v", msg.State.Alertable(), tt.alertable)
			}
		})
	}
}

func TestAlertable(t *testing.T) {
	msgs := []Message{
		Evaluate(boolPtr(true), true, "a", "ok", "bad"),
		Evaluate(boolPtr(true), false, "b", "ok", "bad"),
		Evaluate(boolPtr(false), true, "c", "ok", "bad"),
		Evaluate(boolPtr(false), false, "d", "ok", "bad"),
	}

	got := Alertable(msgs)
	if len(got) != 2 {
		t.Fatalf("expected 2 alertable messages, got %d", len(got))
	}
	if got[0].Label != "b" || got[1].Label != "c" {
		t.Errorf("unexpected alertable messages: %+v", got)
	}
}
