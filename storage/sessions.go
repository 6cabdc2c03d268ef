package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dexidp/dex-mini/entityid"
	"github.com/dexidp/dex-mini/secret"
)

// SessionLifetime is the sliding expiry window for a session (spec §3).
const SessionLifetime = 30 * time.Minute

// CreateSession inserts a fresh session row and returns its opaque uid.
func (s *Store) CreateSession(userID entityid.ID, ip string) (*Session, error) {
	uid, err := secret.New()
	if err != nil {
		return nil, fmt.Errorf("storage: generate session uid: %w", err)
	}
	expires := time.Now().UTC().Add(SessionLifetime)
	_, err = s.db.Exec(
		`INSERT INTO sessions (uid, user_id, last_ip, expires) VALUES (?, ?, ?, ?)`,
		uid, userID.String(), ip, expires,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: create session: %w", err)
	}
	return &Session{UID: uid, UserID: userID, LastIP: ip, Expires: expires}, nil
}

// GetSession fetches a session by uid, re-verifying that it has not
// expired even though the sweeper should already have removed it (spec
// §4.F: "sweep latency is not part of the security boundary").
func (s *Store) GetSession(uid string) (*Session, error) {
	var (
		userIDStr, lastIP string
		expires           time.Time
	)
	err := s.db.QueryRow(
		`SELECT user_id, last_ip, expires FROM sessions WHERE uid = ?`, uid,
	).Scan(&userIDStr, &lastIP, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get session: %w", err)
	}
	if !expires.After(time.Now().UTC()) {
		return nil, ErrNotFound
	}
	userID, err := entityid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("storage: corrupt session user id %q: %w", userIDStr, err)
	}
	return &Session{UID: uid, UserID: userID, LastIP: lastIP, Expires: expires}, nil
}

// RefreshSession slides the session's expiry forward and records the
// latest observed IP. The update never regresses expires, so a lost
// update under concurrent requests for the same uid only costs a stale
// last_ip, never a shortened session (spec §5).
func (s *Store) RefreshSession(uid, ip string, newExpires time.Time) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET last_ip = ?, expires = ? WHERE uid = ? AND expires < ?`,
		ip, newExpires, uid, newExpires,
	)
	if err != nil {
		return fmt.Errorf("storage: refresh session: %w", err)
	}
	return nil
}

// DeleteSession removes a session row (logout).
func (s *Store) DeleteSession(uid string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("storage: delete session: %w", err)
	}
	return nil
}
