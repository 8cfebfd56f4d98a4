// Package media groups files uploaded together as one album so that a single
// announcement can cover every file of the batch.
package media

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL is how long an observed upload stays available for draining.
const DefaultTTL = 60 * time.Second

// Document is the file payload attached to an upload.
type Document struct {
	FileID   string
	FileName string
}

// Item is one uploaded message as seen by the aggregator.
type Item struct {
	MessageID int
	GroupID   string    // empty for single uploads
	Document  *Document // nil for non-document uploads (e.g. video)
}

type entry struct {
	item Item
	at   time.Time
}

// Aggregator buffers uploads by batch identifier for a bounded time.
// It is safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	buckets map[string][]entry
	logger  zerolog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.logger = l.With().Str("component", "media").Logger() }
}

// NewAggregator creates an Aggregator whose entries expire after ttl.
func NewAggregator(ttl time.Duration, opts ...Option) *Aggregator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	a := &Aggregator{
		ttl:     ttl,
		now:     time.Now,
		buckets: make(map[string][]entry),
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Observe records an upload under its batch identifier. Items without a
// batch identifier bypass the aggregator and false is returned.
func (a *Aggregator) Observe(item Item) bool {
	if item.GroupID == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.buckets[item.GroupID] = append(a.buckets[item.GroupID], entry{item: item, at: now})
	a.sweepLocked(now)
	return true
}

// Drain returns the surviving items of a batch in arrival order and discards
// the batch. ok is false when the batch is unknown or fully expired.
func (a *Aggregator) Drain(groupID string) (items []Item, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	items, ok = a.itemsLocked(groupID)
	delete(a.buckets, groupID)
	return items, ok
}

// Peek is Drain without discarding: the batch stays available until it is
// discarded or expires.
func (a *Aggregator) Peek(groupID string) (items []Item, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.itemsLocked(groupID)
}

// Discard drops a batch, reporting whether it was held.
func (a *Aggregator) Discard(groupID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.buckets[groupID]
	delete(a.buckets, groupID)
	return ok
}

// Sweep drops expired entries and empty batches, returning how many entries were removed.
func (a *Aggregator) Sweep() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sweepLocked(a.now())
}

// Groups returns the batch identifiers currently held.
func (a *Aggregator) Groups() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, len(a.buckets))
	for id := range a.buckets {
		ids = append(ids, id)
	}
	return ids
}

// Run sweeps periodically until ctx is cancelled so that batches which are
// never posted do not linger between uploads.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Sweep(); n > 0 {
				a.logger.Debug().Int("expired", n).Msg("media group entries expired")
			}
		}
	}
}

// caller must hold a.mu
func (a *Aggregator) itemsLocked(groupID string) ([]Item, bool) {
	a.sweepLocked(a.now())
	bucket, ok := a.buckets[groupID]
	if !ok {
		return nil, false
	}
	items := make([]Item, 0, len(bucket))
	for _, e := range bucket {
		items = append(items, e.item)
	}
	return items, true
}

// caller must hold a.mu
func (a *Aggregator) sweepLocked(now time.Time) int {
	removed := 0
	for id, bucket := range a.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if now.Sub(e.at) < a.ttl {
				kept = append(kept, e)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(a.buckets, id)
			continue
		}
		a.buckets[id] = kept
	}
	return removed
}
