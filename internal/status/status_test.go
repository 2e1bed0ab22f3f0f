package status

import "testing"

func TestApplyAdvances(t *testing.T) {
	tests := []struct {
		from, to Status
		want     Status
		changed  bool
	}{
		{Sent, Delivered, Delivered, true},
		{Sent, Read, Read, true},
		{Delivered, Read, Read, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			got, changed := Apply(tt.from, tt.to)
			if got != tt.want || changed != tt.changed {
				t.Errorf("Apply(%s, %s) = (%s, %v), want (%s, %v)", tt.from, tt.to, got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestApplyNeverRegresses(t *testing.T) {
	tests := []struct {
		from, to Status
	}{
		{Delivered, Sent},
		{Read, Sent},
		{Read, Delivered},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			got, changed := Apply(tt.from, tt.to)
			if changed || got != tt.from {
				t.Errorf("Apply(%s, %s) = (%s, %v), want (%s, false)", tt.from, tt.to, got, changed, tt.from)
			}
		})
	}
}

// Re-applying the same receipt must be a no-op: at-least-once delivery
// from the transport may hand the same event to a client twice.
func TestApplyIdempotent(t *testing.T) {
	s, changed := Apply(Sent, Read)
	if !changed || s != Read {
		t.Fatalf("first apply = (%s, %v), want (read, true)", s, changed)
	}
	s, changed = Apply(s, Read)
	if changed || s != Read {
		t.Errorf("second apply = (%s, %v), want (read, false)", s, changed)
	}
}

func TestApplyIgnoresUnknown(t *testing.T) {
	s, changed := Apply(Sent, Status("seen"))
	if changed || s != Sent {
		t.Errorf("Apply(sent, seen) = (%s, %v), want (sent, false)", s, changed)
	}
}

func TestValid(t *testing.T) {
	for _, s := range []Status{Sent, Delivered, Read} {
		if !Valid(s) {
			t.Errorf("Valid(%s) = false, want true", s)
		}
	}
	if Valid(Status("queued")) {
		t.Error("Valid(queued) = true, want false")
	}
}
