package search

import (
	"testing"
	"time"
)

func TestStatusCellLifecycle(t *testing.T) {
	var c statusCell
	gen := c.begin("ufc 310", 3, time.Now())

	c.taskStarted()
	c.taskCompleted(12)
	c.finish()

	s := c.snapshot()
	if s == nil {
		t.Fatal("snapshot nil after finish")
	}
	if !s.IsComplete || s.Completed != 1 || s.ReleasesFound != 12 {
		t.Errorf("snapshot = %+v", s)
	}

	c.clear(gen)
	if c.snapshot() != nil {
		t.Error("snapshot survived its own clear")
	}
}

func TestStaleClearKeepsNewerSearch(t *testing.T) {
	var c statusCell
	first := c.begin("first", 1, time.Now())
	c.finish()

	second := c.begin("second", 2, time.Now())

	// The first search's lingering clear fires while the second is
	// still running.
	c.clear(first)
	s := c.snapshot()
	if s == nil || s.Query != "second" {
		t.Fatalf("stale clear wiped the live search: %+v", s)
	}

	c.taskStarted()
	if s = c.snapshot(); s.Active != 1 {
		t.Errorf("active = %d, want 1", s.Active)
	}

	c.clear(second)
	if c.snapshot() != nil {
		t.Error("snapshot survived the matching clear")
	}
}
