// Package gate decides whether a user may redeem a token, based on membership
// in every required channel.
package gate

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Membership statuses that satisfy a channel requirement.
const (
	StatusMember        = "member"
	StatusAdministrator = "administrator"
	StatusCreator       = "creator"
)

// RetryPrefix prefixes the callback payload of the "try again" button.
const RetryPrefix = "retry:"

// ErrInvalidRetry is returned for a retry payload that does not carry a token.
var ErrInvalidRetry = errors.New("invalid retry payload")

var retryRe = regexp.MustCompile(`^retry:(file_\w+_\d+)`)

// MembershipChecker queries a user's status in a channel.
type MembershipChecker interface {
	MemberStatus(ctx context.Context, channel string, userID int64) (string, error)
}

// Gate evaluates the required-channel policy.
type Gate struct {
	channels []string
	checker  MembershipChecker
	logger   zerolog.Logger
}

// New creates a Gate over the given required channels. Blank entries are ignored.
func New(channels []string, checker MembershipChecker, logger zerolog.Logger) *Gate {
	cleaned := make([]string, 0, len(channels))
	for _, ch := range channels {
		ch = strings.TrimSpace(ch)
		if ch != "" {
			cleaned = append(cleaned, ch)
		}
	}
	return &Gate{
		channels: cleaned,
		checker:  checker,
		logger:   logger.With().Str("component", "gate").Logger(),
	}
}

// Channels returns the required channels in configured order.
func (g *Gate) Channels() []string {
	out := make([]string, len(g.channels))
	copy(out, g.channels)
	return out
}

// Unsatisfied returns the required channels the user has not joined, in
// configured order. An empty result means the user passes the gate. A failed
// membership query counts the channel as not joined.
func (g *Gate) Unsatisfied(ctx context.Context, userID int64) []string {
	var missing []string
	for _, ch := range g.channels {
		status, err := g.checker.MemberStatus(ctx, ch, userID)
		if err != nil {
			g.logger.Warn().Err(err).Str("channel", ch).Int64("user_id", userID).Msg("membership query failed")
			missing = append(missing, ch)
			continue
		}
		if !Satisfies(status) {
			missing = append(missing, ch)
		}
	}
	return missing
}

// Satisfies reports whether a membership status fulfils a requirement.
func Satisfies(status string) bool {
	switch status {
	case StatusMember, StatusAdministrator, StatusCreator:
		return true
	}
	return false
}

// RetryData encodes a token into a retry callback payload.
func RetryData(token string) string {
	return RetryPrefix + token
}

// ParseRetry extracts the token from a retry callback payload.
func ParseRetry(data string) (string, error) {
	m := retryRe.FindStringSubmatch(data)
	if m == nil {
		return "", ErrInvalidRetry
	}
	return m[1], nil
}

// JoinURL returns the public link of a channel username.
func JoinURL(channel string) string {
	return "https://t.me/" + strings.TrimPrefix(channel, "@")
}
