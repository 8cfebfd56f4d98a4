// Package posting turns an operator's uploaded batch into stored tokens and a
// single announcement carrying one retrieval link per quality.
package posting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/filegate/internal/filemeta"
	"github.com/p-blackswan/filegate/internal/media"
	"github.com/p-blackswan/filegate/internal/metrics"
	"github.com/p-blackswan/filegate/internal/tokens"
)

// DefaultGrace is the pause before draining a batch, letting sibling uploads land.
const DefaultGrace = time.Second

// DefaultFileName stands in for documents uploaded without a name.
const DefaultFileName = "file"

// MultiQuality is shown when a post carries more than one quality.
const MultiQuality = "Multi"

var (
	ErrNotOperator = errors.New("posting: caller is not the operator")
	ErrNoReply     = errors.New("posting: not a reply to an upload")
	ErrNoDocument  = errors.New("posting: no document in batch")
)

// Request is one /postfile invocation.
type Request struct {
	Username string      // invoking user's username
	Reply    *media.Item // replied-to upload; nil when the command is not a reply
}

// Pipeline prepares announcements from aggregated uploads.
type Pipeline struct {
	operator string
	agg      *media.Aggregator
	store    tokens.Store
	grace    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGrace overrides the pre-drain pause.
func WithGrace(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.grace = d
		}
	}
}

// WithSleep replaces the pause implementation.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = fn }
}

// WithMetrics counts issued tokens.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a Pipeline for the given operator username.
func New(operator string, agg *media.Aggregator, store tokens.Store, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		operator: normalizeUsername(operator),
		agg:      agg,
		store:    store,
		grace:    DefaultGrace,
		sleep:    sleepCtx,
		logger:   logger.With().Str("component", "posting").Logger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Authorize reports ErrNotOperator unless username is the configured operator.
// An unset operator authorizes nobody.
func (p *Pipeline) Authorize(username string) error {
	if p.operator == "" || !strings.EqualFold(normalizeUsername(username), p.operator) {
		return ErrNotOperator
	}
	return nil
}

// Prepare runs the whole flow up to, but not including, publishing: it
// collects the batch, writes one token per document and builds the announcement.
// The batch stays in the aggregator so that a failed publish can be retried;
// call Commit once the announcement is out.
func (p *Pipeline) Prepare(ctx context.Context, req Request) (Announcement, error) {
	if err := p.Authorize(req.Username); err != nil {
		return Announcement{}, err
	}
	if req.Reply == nil {
		return Announcement{}, ErrNoReply
	}

	batch, err := p.collect(ctx, *req.Reply)
	if err != nil {
		return Announcement{}, err
	}

	var (
		ann      = Announcement{GroupID: req.Reply.GroupID}
		byQual   = make(map[string]string)
		issued   int
		firstDoc = true
	)
	for _, item := range batch {
		if item.Document == nil {
			continue
		}
		name := item.Document.FileName
		if name == "" {
			name = DefaultFileName
		}

		meta := filemeta.Parse(name)
		key := tokens.Derive(meta.Quality, item.MessageID)
		if err := p.store.Put(ctx, tokens.Token{Key: key, FileID: item.Document.FileID, FileName: name}); err != nil {
			return Announcement{}, fmt.Errorf("posting: store token %s: %w", key, err)
		}
		issued++

		byQual[meta.Quality] = key
		ann.Audio, ann.Season, ann.Episode = meta.Audio, meta.Season, meta.Episode
		if firstDoc {
			ann.Title = filemeta.Title(name)
			firstDoc = false
		}
	}
	p.metrics.AddTokens(issued)

	if len(byQual) == 0 {
		return Announcement{}, ErrNoDocument
	}

	qualities := make([]string, 0, len(byQual))
	for q := range byQual {
		qualities = append(qualities, q)
	}
	sort.Strings(qualities)
	for _, q := range qualities {
		ann.Links = append(ann.Links, Link{Quality: q, Token: byQual[q]})
	}

	ann.Quality = qualities[0]
	if len(qualities) > 1 {
		ann.Quality = MultiQuality
	}

	p.logger.Info().
		Int("documents", issued).
		Int("qualities", len(qualities)).
		Str("title", ann.Title).
		Msg("announcement prepared")
	return ann, nil
}

// Commit discards the batch behind a published announcement.
func (p *Pipeline) Commit(ann Announcement) {
	if ann.GroupID != "" && p.agg.Discard(ann.GroupID) {
		p.logger.Debug().Str("group_id", ann.GroupID).Msg("batch released")
	}
}

// collect returns the uploads covered by the replied-to item.
func (p *Pipeline) collect(ctx context.Context, reply media.Item) ([]media.Item, error) {
	if reply.GroupID == "" {
		return []media.Item{reply}, nil
	}
	if err := p.sleep(ctx, p.grace); err != nil {
		return nil, err
	}
	items, ok := p.agg.Peek(reply.GroupID)
	if !ok || len(items) == 0 {
		p.logger.Debug().Str("group_id", reply.GroupID).Msg("batch expired, posting reply alone")
		return []media.Item{reply}, nil
	}
	return items, nil
}

func normalizeUsername(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
