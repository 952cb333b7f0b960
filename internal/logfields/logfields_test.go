package logfields

import (
	"errors"
	"testing"
)

func TestHelpers(t *testing.T) {
	if a := Chapter("Acoustics"); a.Key != KeyChapter || a.Value.String() != "Acoustics" {
		t.Fatalf("unexpected chapter attr: %v", a)
	}
	if a := DurationMS(12.5); a.Key != KeyDurationMS || a.Value.Float64() != 12.5 {
		t.Fatalf("unexpected duration attr: %v", a)
	}
	if a := Error(nil); a.Value.String() != "" {
		t.Fatalf("nil error should be empty, got %q", a.Value.String())
	}
	if a := Error(errors.New("boom")); a.Value.String() != "boom" {
		t.Fatalf("unexpected error attr: %v", a)
	}
}
