package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/p-blackswan/filegate/internal/tokens"
)

var (
	_ tokens.Store     = (*Store)(nil)
	_ tokens.UserStore = (*Store)(nil)
)

// Put upserts a file token.
func (s *Store) Put(ctx context.Context, tok tokens.Token) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO file_tokens (token, file_id, file_name) VALUES (?, ?, ?)`,
		tok.Key, tok.FileID, tok.FileName)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Lookup returns the token record, or false when it does not exist.
func (s *Store) Lookup(ctx context.Context, key string) (tokens.Token, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok := tokens.Token{Key: key}
	var fileID, fileName sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT file_id, file_name FROM file_tokens WHERE token = ?`, key).
		Scan(&fileID, &fileName)
	if errors.Is(err, sql.ErrNoRows) {
		return tokens.Token{}, false, nil
	}
	if err != nil {
		return tokens.Token{}, false, fmt.Errorf("failed to get token: %w", err)
	}
	if fileID.String == "" {
		return tokens.Token{}, false, nil
	}
	tok.FileID = fileID.String
	tok.FileName = fileName.String
	return tok, true, nil
}

// Count returns the number of stored tokens.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM file_tokens`)
}

// AddUser records a user if not already known.
func (s *Store) AddUser(ctx context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (user_id) VALUES (?)`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to add user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to add user: %w", err)
	}
	return n > 0, nil
}

// CountUsers returns the number of known users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (s *Store) count(ctx context.Context, query string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}
