package search

import (
	"sync"
	"time"
)

// ActiveSearchStatus is a live snapshot of an in-flight search,
// published to the UI over the websocket hub.
type ActiveSearchStatus struct {
	Query         string    `json:"query"`
	Total         int       `json:"total"`
	Active        int       `json:"active"`
	Completed     int       `json:"completed"`
	ReleasesFound int       `json:"releasesFound"`
	StartedAt     time.Time `json:"startedAt"`
	IsComplete    bool      `json:"isComplete"`
}

// statusCell guards the process-wide active search snapshot. Each
// begin bumps a generation so a lingering clear from a finished search
// cannot wipe the status of one started after it.
type statusCell struct {
	mu      sync.Mutex
	gen     uint64
	current *ActiveSearchStatus
}

// begin installs a fresh snapshot and returns its generation token.
func (c *statusCell) begin(query string, total int, now time.Time) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.current = &ActiveSearchStatus{
		Query:     query,
		Total:     total,
		StartedAt: now,
	}
	return c.gen
}

func (c *statusCell) taskStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.Active++
	}
}

func (c *statusCell) taskCompleted(found int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	c.current.Active--
	c.current.Completed++
	c.current.ReleasesFound += found
}

func (c *statusCell) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.IsComplete = true
	}
}

// clear drops the snapshot, but only for the generation it was issued
// against.
func (c *statusCell) clear(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.current = nil
}

// Snapshot returns a copy of the current status, nil when idle.
func (c *statusCell) snapshot() *ActiveSearchStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}
