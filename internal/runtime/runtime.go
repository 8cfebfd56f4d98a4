// Package runtime implements the bot event loop: sources feed a bounded
// worker pool that dispatches each event to the handlers routed to it.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/filegate/internal/event"
	"github.com/p-blackswan/filegate/internal/requestid"
)

// Config holds runtime configuration.
type Config struct {
	// MaxConcurrency limits how many events are handled in parallel.
	MaxConcurrency int

	// EventBufferSize is the capacity of the internal event channel.
	EventBufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:  4,
		EventBufferSize: 256,
	}
}

// Handler processes events for one bot.
type Handler interface {
	Name() string
	Handle(ctx context.Context, ev event.Event) error
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc struct {
	ID string
	Fn func(ctx context.Context, ev event.Event) error
}

func (h HandlerFunc) Name() string { return h.ID }

func (h HandlerFunc) Handle(ctx context.Context, ev event.Event) error { return h.Fn(ctx, ev) }

// Router decides which handlers should receive a given event.
type Router interface {
	Route(ev event.Event) []Handler
}

// botRouter sends each event to the handler named after the bot that received it.
type botRouter struct {
	handlers map[string]Handler
}

func (r *botRouter) Route(ev event.Event) []Handler {
	if h, ok := r.handlers[ev.Bot]; ok {
		return []Handler{h}
	}
	return nil
}

// Runtime is the main event loop. It wires sources → router → handlers.
type Runtime struct {
	config   Config
	sources  []event.EventSource
	router   Router
	handlers []Handler
	logger   zerolog.Logger
}

// New creates a Runtime.
func New(cfg Config, logger zerolog.Logger) *Runtime {
	def := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = def.EventBufferSize
	}
	return &Runtime{
		config: cfg,
		logger: logger.With().Str("component", "runtime").Logger(),
	}
}

// AddSource registers an event source. Must be called before Run().
func (r *Runtime) AddSource(src event.EventSource) {
	r.sources = append(r.sources, src)
}

// AddHandler registers a handler. Must be called before Run().
func (r *Runtime) AddHandler(h Handler) {
	r.handlers = append(r.handlers, h)
}

// SetRouter sets a custom event router. If not set, events go to the
// handler whose name matches the receiving bot.
func (r *Runtime) SetRouter(router Router) {
	r.router = router
}

// Run starts the event loop. Blocks until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	if r.router == nil {
		byName := make(map[string]Handler, len(r.handlers))
		for _, h := range r.handlers {
			byName[h.Name()] = h
		}
		r.router = &botRouter{handlers: byName}
	}

	eventCh := make(chan event.Event, r.config.EventBufferSize)

	for _, src := range r.sources {
		r.logger.Info().Str("source", src.Name()).Msg("starting event source")
		if err := src.Subscribe(ctx, eventCh); err != nil {
			return fmt.Errorf("subscribe %s: %w", src.Name(), err)
		}
	}

	// Worker pool via semaphore.
	sem := make(chan struct{}, r.config.MaxConcurrency)
	var wg sync.WaitGroup

	r.logger.Info().
		Int("sources", len(r.sources)).
		Int("handlers", len(r.handlers)).
		Int("concurrency", r.config.MaxConcurrency).
		Msg("runtime started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("runtime shutting down, waiting for in-flight handlers")
			wg.Wait()
			return ctx.Err()

		case ev := <-eventCh:
			targets := r.router.Route(ev)
			if len(targets) == 0 {
				r.logger.Debug().Str("event_id", ev.ID).Str("bot", ev.Bot).Msg("event routed to no handlers")
				continue
			}

			for _, h := range targets {
				h := h
				ev := ev

				select {
				case sem <- struct{}{}: // acquire concurrency slot
				case <-ctx.Done():
					continue
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer func() { <-sem }() // release slot
					r.dispatch(ctx, h, ev)
				}()
			}
		}
	}
}

func (r *Runtime) dispatch(ctx context.Context, h Handler, ev event.Event) {
	ctx = requestid.WithRequestID(ctx, ev.ID)
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().
				Str("handler", h.Name()).
				Str("event_id", ev.ID).
				Interface("panic", p).
				Msg("handler panicked")
		}
	}()

	if err := h.Handle(ctx, ev); err != nil {
		r.logger.Error().Err(err).
			Str("handler", h.Name()).
			Str("event_id", ev.ID).
			Str("kind", string(ev.Kind)).
			Msg("handler error")
	}
}
