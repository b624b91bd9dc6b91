// Package governor tracks failed secret lookups per identifier and decides
// whether a further lookup may be attempted.
//
// An identifier with no recorded failures is unlocked. Every failed lookup
// increments its attempt counter. Once the counter reaches the configured
// maximum, lookups are refused until the cooldown has elapsed since the most
// recent failure, at which point the entry is discarded. A successful lookup
// leaves the counter untouched; only cooldown expiry clears it.
//
// The table is volatile and local to the process.
package governor

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Entry is the failure history of one identifier.
type Entry struct {
	LastRequest time.Time
	Attempts    int
}

// Decision is the outcome of Permit.
type Decision struct {
	Permitted bool
	// Attempts and LastRequest describe the identifier's entry at decision
	// time. Both are zero when no entry exists.
	Attempts    int
	LastRequest time.Time
	// RetryAfter is how long a denied caller has to wait.
	RetryAfter time.Duration
}

type Governor struct {
	mu                sync.Mutex
	entries           map[string]*Entry
	cooldown          time.Duration
	maxFailedAttempts int
	clock             Clock
}

func New(cooldown time.Duration, maxFailedAttempts int) *Governor {
	if maxFailedAttempts < 1 {
		maxFailedAttempts = 1
	}
	return &Governor{
		entries:           make(map[string]*Entry),
		cooldown:          cooldown,
		maxFailedAttempts: maxFailedAttempts,
		clock:             systemClock{},
	}
}

// WithClock sets a custom clock (for testing)
func (g *Governor) WithClock(clock Clock) *Governor {
	g.clock = clock
	return g
}

func (g *Governor) Cooldown() time.Duration { return g.cooldown }

func (g *Governor) MaxFailedAttempts() int { return g.maxFailedAttempts }

// expired must be called with g.mu held.
func (g *Governor) expired(e *Entry, now time.Time) bool {
	return now.Sub(e.LastRequest) > g.cooldown
}

// Permit decides whether identifier may attempt a lookup. An entry whose
// cooldown has elapsed is removed before deciding.
func (g *Governor) Permit(identifier string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	e, ok := g.entries[identifier]
	if !ok {
		return Decision{Permitted: true}
	}

	// Expiry applies at any count, not only at the limit. A stale entry below
	// the limit starts over from zero, the same as Sweep would leave it.
	if g.expired(e, now) {
		delete(g.entries, identifier)
		return Decision{Permitted: true}
	}

	d := Decision{
		Permitted:   e.Attempts < g.maxFailedAttempts,
		Attempts:    e.Attempts,
		LastRequest: e.LastRequest,
	}
	if !d.Permitted {
		d.RetryAfter = g.cooldown - now.Sub(e.LastRequest)
	}
	return d
}

// RecordFailure notes a failed lookup for identifier and returns the
// updated entry.
func (g *Governor) RecordFailure(identifier string) Entry {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	e, ok := g.entries[identifier]
	if !ok {
		e = &Entry{}
		g.entries[identifier] = e
	}
	e.Attempts++
	e.LastRequest = now

	if e.Attempts == g.maxFailedAttempts {
		log.Warnf("identifier locked out after %d failed attempts", e.Attempts)
	}
	return *e
}

// Lookup returns a copy of the entry for identifier.
func (g *Governor) Lookup(identifier string) (Entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[identifier]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (g *Governor) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Sweep removes every entry whose cooldown has elapsed and returns how many
// were removed. Permit would discard the same entries on next use.
func (g *Governor) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	removed := 0
	for id, e := range g.entries {
		if g.expired(e, now) {
			delete(g.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps the table every interval until ctx is done.
func (g *Governor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.Sweep(); n > 0 {
				log.Debugf("swept %d expired rate limit entries", n)
			}
		}
	}
}
