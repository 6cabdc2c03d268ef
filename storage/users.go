package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dexidp/dex-mini/entityid"
)

// CreateUser allocates a fresh EntityId and inserts a user row. Used by
// the registration flow (spec §4.I "register").
func (s *Store) CreateUser(username, email, passwordHash string) (*User, error) {
	id, err := entityid.New()
	if err != nil {
		return nil, fmt.Errorf("storage: allocate user id: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), username, email, passwordHash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: create user: %w", err)
	}
	return &User{ID: id, Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// GetUserByUsername fetches a user by their unique username.
func (s *Store) GetUserByUsername(username string) (*User, error) {
	row := s.db.QueryRow(
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

// GetUser fetches a user by ID.
func (s *Store) GetUser(id entityid.ID) (*User, error) {
	row := s.db.QueryRow(
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`,
		id.String(),
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		idStr, username, passwordHash string
		email                         sql.NullString
		createdAt                     time.Time
	)
	if err := row.Scan(&idStr, &username, &email, &passwordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: scan user: %w", err)
	}
	id, err := entityid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("storage: corrupt user id %q: %w", idStr, err)
	}
	return &User{
		ID:           id,
		Username:     username,
		Email:        email.String,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}, nil
}
