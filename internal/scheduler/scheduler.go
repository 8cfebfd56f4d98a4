// Package scheduler removes delivered files from a user's chat after a fixed
// delay. Pending deletions live in memory only; a restart drops them.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/filegate/internal/errors"
	"github.com/p-blackswan/filegate/internal/metrics"
)

// DefaultDelay is how long a delivered file stays in the chat.
const DefaultDelay = 600 * time.Second

const deleteTimeout = 30 * time.Second

// Deleter removes a message from a chat.
type Deleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// PendingDeletion is a scheduled one-shot removal.
type PendingDeletion struct {
	ID        string
	ChatID    int64
	MessageID int
	FireAt    time.Time
}

type pending struct {
	PendingDeletion
	timer *time.Timer
}

// Scheduler arms one timer per delivered message.
type Scheduler struct {
	mu      sync.Mutex
	deleter Deleter
	delay   time.Duration
	pending map[string]*pending
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMetrics records deletion outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a Scheduler. A non-positive delay selects DefaultDelay.
func New(deleter Deleter, delay time.Duration, logger zerolog.Logger, opts ...Option) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	s := &Scheduler{
		deleter: deleter,
		delay:   delay,
		pending: make(map[string]*pending),
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Delay returns the default delay applied by Schedule.
func (s *Scheduler) Delay() time.Duration { return s.delay }

// Schedule arms a deletion of messageID in chatID after delay
// (the scheduler default when delay is not positive).
func (s *Scheduler) Schedule(chatID int64, messageID int, delay time.Duration) PendingDeletion {
	if delay <= 0 {
		delay = s.delay
	}

	p := &pending{PendingDeletion: PendingDeletion{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		MessageID: messageID,
		FireAt:    time.Now().Add(delay),
	}}

	s.mu.Lock()
	s.pending[p.ID] = p
	p.timer = time.AfterFunc(delay, func() { s.fire(p.ID) })
	n := len(s.pending)
	s.mu.Unlock()

	s.metrics.SetPendingDeletions(n)
	s.logger.Debug().
		Str("id", p.ID).
		Int64("chat_id", chatID).
		Int("message_id", messageID).
		Time("fire_at", p.FireAt).
		Msg("deletion scheduled")
	return p.PendingDeletion
}

// Pending returns scheduled deletions ordered by fire time.
func (s *Scheduler) Pending() []PendingDeletion {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PendingDeletion, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p.PendingDeletion)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}

// Stop disarms every pending timer and returns how many deletions were dropped.
func (s *Scheduler) Stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, p := range s.pending {
		if p.timer.Stop() {
			dropped++
		}
		delete(s.pending, id)
	}
	s.metrics.SetPendingDeletions(0)
	if dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Msg("pending deletions dropped on shutdown")
	}
	return dropped
}

func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	p, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	n := len(s.pending)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.metrics.SetPendingDeletions(n)

	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()

	log := s.logger.With().Str("id", id).Int64("chat_id", p.ChatID).Int("message_id", p.MessageID).Logger()
	if err := s.deleter.DeleteMessage(ctx, p.ChatID, p.MessageID); err != nil {
		result := "failed"
		if perrors.IsMessageGone(err) {
			result = "gone"
		}
		s.metrics.RecordDeletion(result)
		log.Warn().Err(err).Msg("auto-delete failed")
		return
	}
	s.metrics.RecordDeletion("deleted")
	log.Info().Msg("delivered file auto-deleted")
}
