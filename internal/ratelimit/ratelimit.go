package ratelimit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Gate enforces the per-submitter cooldown between accepted publishes. The
// table is process-lifetime state, not persisted: a restart clears it, which
// only shortens one cooldown per submitter.
type Gate struct {
	window time.Duration
	clock  clock.Clock

	mu           sync.Mutex
	lastAccepted map[int64]time.Time
}

// New creates a gate with the given cooldown window. The clock is injected so
// tests can advance time without sleeping.
func New(window time.Duration, clk clock.Clock) *Gate {
	return &Gate{
		window:       window,
		clock:        clk,
		lastAccepted: make(map[int64]time.Time),
	}
}

// Check reports whether a submission from this submitter may proceed now.
// Exempt submitters and submitters with no prior accepted publish always pass.
// On rejection the remaining wait is reported in whole minutes, rounded up.
// Check never stamps the table: a blocked or filtered submission must not reset
// the cooldown clock. Call MarkAccepted after the publish fully succeeds.
func (g *Gate) Check(submitterID int64, isExempt bool) (bool, int) {
	if isExempt {
		return true, 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastAccepted[submitterID]
	if !ok {
		return true, 0
	}

	elapsed := g.clock.Now().Sub(last)
	if elapsed >= g.window {
		return true, 0
	}

	remaining := g.window - elapsed
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	return false, minutes
}

// MarkAccepted records the current time as the submitter's last accepted
// publish, overwriting any previous entry.
func (g *Gate) MarkAccepted(submitterID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastAccepted[submitterID] = g.clock.Now()
}
