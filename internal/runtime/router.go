package runtime

import (
	"github.com/rs/zerolog"

	"github.com/p-blackswan/filegate/internal/event"
)

// Rule defines a routing condition and the set of target handler names.
type Rule struct {
	// Bot matches the receiving bot exactly. Empty = match any.
	Bot string `yaml:"bot"`

	// Kinds matches any of the listed event kinds. Empty = match any.
	Kinds []event.Kind `yaml:"kinds"`

	// Handlers is the list of handler names to route matching events to.
	Handlers []string `yaml:"handlers"`
}

func (r Rule) matches(ev event.Event) bool {
	if r.Bot != "" && r.Bot != ev.Bot {
		return false
	}
	if len(r.Kinds) == 0 {
		return true
	}
	for _, k := range r.Kinds {
		if k == ev.Kind {
			return true
		}
	}
	return false
}

// SmartRouter routes events to handlers based on an ordered list of Rules.
// The first matching rule wins; events matching no rule are dropped.
type SmartRouter struct {
	rules    []Rule
	handlers map[string]Handler
	logger   zerolog.Logger
}

// NewSmartRouter creates a SmartRouter with the given rules.
func NewSmartRouter(rules []Rule, handlers []Handler, logger zerolog.Logger) *SmartRouter {
	byName := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		byName[h.Name()] = h
	}
	return &SmartRouter{
		rules:    rules,
		handlers: byName,
		logger:   logger.With().Str("component", "router").Logger(),
	}
}

// Route implements Router.
func (r *SmartRouter) Route(ev event.Event) []Handler {
	for _, rule := range r.rules {
		if !rule.matches(ev) {
			continue
		}

		targets := make([]Handler, 0, len(rule.Handlers))
		for _, name := range rule.Handlers {
			if h, ok := r.handlers[name]; ok {
				targets = append(targets, h)
			} else {
				r.logger.Warn().Str("handler", name).Msg("unknown handler in rule")
			}
		}
		return targets
	}

	r.logger.Debug().
		Str("bot", ev.Bot).
		Str("kind", string(ev.Kind)).
		Msg("no rule matched, dropping event")
	return nil
}

// AddHandler adds a handler to the router's lookup map.
func (r *SmartRouter) AddHandler(h Handler) {
	r.handlers[h.Name()] = h
}

// AddRule appends a routing rule at the lowest priority.
func (r *SmartRouter) AddRule(rule Rule) {
	r.rules = append(r.rules, rule)
}

// PrependRule inserts a routing rule at the highest priority.
func (r *SmartRouter) PrependRule(rule Rule) {
	r.rules = append([]Rule{rule}, r.rules...)
}
