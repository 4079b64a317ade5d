package api

import (
	"context"
	"sync"
	"time"

	"github.com/forest6511/quantavault/pkg/security"
	"github.com/forest6511/quantavault/pkg/vault"
)

// DefaultReportTTL bounds how long a cached report is served. Events
// normally invalidate sooner; the TTL covers dropped events and the
// passage of time that moves records into the stale window.
const DefaultReportTTL = time.Minute

type cachedReport struct {
	report *security.Report
	at     time.Time
}

// ReportCache holds the latest security report per owner. Every
// invalidation bumps the owner's version; Put drops reports computed
// against an older version.
type ReportCache struct {
	mu       sync.Mutex
	reports  map[string]cachedReport
	versions map[string]uint64
	ttl      time.Duration
	now      func() time.Time
}

// NewReportCache returns an empty cache whose entries expire after ttl.
func NewReportCache(ttl time.Duration) *ReportCache {
	return &ReportCache{
		reports:  make(map[string]cachedReport),
		versions: make(map[string]uint64),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the cached report for owner, if still valid.
func (c *ReportCache) Get(owner string) (*security.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.reports[owner]
	if !ok || c.now().Sub(entry.at) > c.ttl {
		return nil, false
	}
	return entry.report, true
}

// Version returns the owner's current version. Read it before listing
// the credentials a report is built from.
func (c *ReportCache) Version(owner string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[owner]
}

// Put stores report for owner if no invalidation happened since version
// was read. It reports whether the report was stored.
func (c *ReportCache) Put(owner string, version uint64, report *security.Report) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[owner] != version {
		return false
	}
	c.reports[owner] = cachedReport{report: report, at: c.now()}
	return true
}

// Invalidate drops the report for owner and bumps its version.
func (c *ReportCache) Invalidate(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reports, owner)
	c.versions[owner]++
}

// Watch invalidates reports as v publishes changes, until ctx is done.
// Handlers invalidate their own writes synchronously; Watch covers writes
// made through other surfaces sharing v.
// The returned channel is closed when watching stops.
func (c *ReportCache) Watch(ctx context.Context, v *vault.Vault) <-chan struct{} {
	events := v.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			c.Invalidate(ev.Owner)
		}
	}()
	return done
}
