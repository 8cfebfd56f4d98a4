// Package tokens maps opaque retrieval tokens to deliverable files and
// tracks the users who have talked to the bot.
package tokens

import (
	"context"
	"fmt"
	"regexp"
)

// Token represents one retrievable content item.
type Token struct {
	Key      string `json:"token"`
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// Store defines the token storage interface.
type Store interface {
	// Put upserts a token; re-putting the same key overwrites the record.
	Put(ctx context.Context, tok Token) error
	// Lookup returns the token and true, or false when the key is unknown.
	Lookup(ctx context.Context, key string) (Token, bool, error)
	// Count returns the number of stored tokens.
	Count(ctx context.Context) (int, error)
}

// UserStore records users who have interacted with the bot.
type UserStore interface {
	// AddUser inserts the user if absent and reports whether it was new.
	AddUser(ctx context.Context, userID int64) (bool, error)
	CountUsers(ctx context.Context) (int, error)
}

var keyPattern = regexp.MustCompile(`^file_\w+_\d+$`)

// Derive builds the canonical token for a quality label and source message.
func Derive(quality string, messageID int) string {
	return fmt.Sprintf("file_%s_%d", quality, messageID)
}

// Valid reports whether key has the canonical token shape.
func Valid(key string) bool {
	return keyPattern.MatchString(key)
}
