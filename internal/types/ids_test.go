package types

import (
	"testing"
	"time"
)

func TestTreeIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewTreeID()
	after := time.Now().Add(time.Second)

	ts := TreeIDTime(id)
	if ts.Before(before) || ts.After(after) {
		t.Errorf("TreeIDTime() = %v, want between %v and %v", ts, before, after)
	}

	if got := TreeIDTime("not-a-uuid"); !got.IsZero() {
		t.Errorf("TreeIDTime(invalid) = %v, want zero", got)
	}
}

func TestParseTreeID(t *testing.T) {
	id := NewTreeID()
	got, err := ParseTreeID(string(id))
	if err != nil || got != id {
		t.Fatalf("ParseTreeID(%q) = %q, %v", id, got, err)
	}
	if _, err := ParseTreeID("tree-1"); err == nil {
		t.Error("expected error for malformed id")
	}
}
