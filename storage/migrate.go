package storage

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT UNIQUE NOT NULL,
	email         TEXT,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS clients (
	id                 TEXT PRIMARY KEY,
	client_name        TEXT NOT NULL,
	app_type           TEXT NOT NULL,
	client_uri         TEXT,
	logo_uri           TEXT NOT NULL,
	registration_token TEXT NOT NULL,
	secret_hash        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS client_redirect_uris (
	client_id    TEXT NOT NULL REFERENCES clients(id),
	redirect_uri TEXT NOT NULL,
	PRIMARY KEY (client_id, redirect_uri)
);

CREATE TABLE IF NOT EXISTS client_contacts (
	client_id TEXT NOT NULL REFERENCES clients(id),
	email     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	uid     TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	last_ip TEXT,
	expires TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS authorization_codes (
	uid     TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	client_id TEXT NOT NULL REFERENCES clients(id),
	body    TEXT NOT NULL,
	expires TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS access_tokens (
	uid     TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	client_id TEXT NOT NULL REFERENCES clients(id),
	body    TEXT NOT NULL,
	expires TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS jwt_keys (
	id       TEXT PRIMARY KEY,
	pem_body TEXT NOT NULL
);
`

// migrate applies the full schema. SQLite's CREATE TABLE IF NOT EXISTS
// makes this idempotent, so there is no migration version table the way
// the teacher's storage/sql/migrate.go tracks one for its multi-dialect
// backends — there is only ever one schema version here.
func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}
