// Package store persists user credentials, privilege levels, and the chat
// log in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrUserNotFound is returned when no user row matches a name.
var ErrUserNotFound = errors.New("user not found")

// User is one credentials row.
type User struct {
	ID           uuid.UUID
	Name         string
	PasswordHash []byte
}

// UserInfo pairs a user with its privilege level for listings.
type UserInfo struct {
	ID        uuid.UUID
	Name      string
	Privilege int
}

// Store wraps the SQLite database holding users, permissions, and
// messages.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BLOB PRIMARY KEY,
	name VARCHAR(32) NOT NULL UNIQUE COLLATE NOCASE,
	password_hash VARCHAR(255) NOT NULL
);

CREATE TABLE IF NOT EXISTS permissions (
	id BLOB PRIMARY KEY,
	privilege_level INT NOT NULL,
	FOREIGN KEY(id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id BLOB PRIMARY KEY,
	timestamp TEXT,
	message VARCHAR(255),
	user_id BLOB NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}
	slog.Debug("sqlite migrations applied")
	return nil
}

// UserExists reports whether a user row with this name exists,
// case-insensitive.
func (s *Store) UserExists(ctx context.Context, name string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE name = ?)`
	var exists int
	if err := s.db.QueryRowContext(ctx, q, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("query user existence: %w", err)
	}
	return exists == 1, nil
}

// CreateUser inserts the credentials row and a privilege row at level 0 in
// one transaction.
func (s *Store) CreateUser(ctx context.Context, id uuid.UUID, name string, passwordHash []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO users VALUES (?, ?, ?)`, id[:], name, passwordHash); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO permissions VALUES (?, ?)`, id[:], 0); err != nil {
		return fmt.Errorf("insert permissions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	slog.Debug("user created", "user_id", id, "name", name)
	return nil
}

// UserByName loads a credentials row by name, case-insensitive.
func (s *Store) UserByName(ctx context.Context, name string) (User, error) {
	const q = `SELECT id, name, password_hash FROM users WHERE name = ? LIMIT 1`
	var (
		u  User
		id []byte
	)
	err := s.db.QueryRowContext(ctx, q, name).Scan(&id, &u.Name, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.ID, err = uuid.FromBytes(id)
	if err != nil {
		return User{}, fmt.Errorf("decode user id: %w", err)
	}
	return u, nil
}

// EnsurePrivilege returns the user's privilege level, creating the row at
// level 0 when it is missing.
func (s *Store) EnsurePrivilege(ctx context.Context, id uuid.UUID) (int, error) {
	const q = `SELECT privilege_level FROM permissions WHERE id = ? LIMIT 1`
	var level int
	err := s.db.QueryRowContext(ctx, q, id[:]).Scan(&level)
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query privilege: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin ensure privilege: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO permissions VALUES (?, ?)`, id[:], 0); err != nil {
		return 0, fmt.Errorf("insert privilege: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ensure privilege: %w", err)
	}
	slog.Debug("privilege row created", "user_id", id)
	return 0, nil
}

// InsertChatMessage persists one chat line.
func (s *Store) InsertChatMessage(ctx context.Context, id uuid.UUID, ts time.Time, message string, userID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert message: %w", err)
	}
	defer tx.Rollback()
	const q = `INSERT INTO messages VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, id[:], ts.UTC().Format(time.RFC3339Nano), message, userID[:]); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert message: %w", err)
	}
	slog.Debug("chat message persisted", "msg_id", id, "user_id", userID)
	return nil
}

// ListUsers returns every user with its privilege level, name-ordered.
func (s *Store) ListUsers(ctx context.Context) ([]UserInfo, error) {
	const q = `
SELECT u.id, u.name, COALESCE(p.privilege_level, 0)
FROM users u
LEFT JOIN permissions p ON p.id = u.id
ORDER BY u.name
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []UserInfo
	for rows.Next() {
		var (
			info UserInfo
			id   []byte
		)
		if err := rows.Scan(&id, &info.Name, &info.Privilege); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if info.ID, err = uuid.FromBytes(id); err != nil {
			return nil, fmt.Errorf("decode user id: %w", err)
		}
		users = append(users, info)
	}
	return users, rows.Err()
}

// SetPrivilege updates a user's privilege level by name.
func (s *Store) SetPrivilege(ctx context.Context, name string, level int) error {
	u, err := s.UserByName(ctx, name)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO permissions (id, privilege_level) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET privilege_level = excluded.privilege_level
`
	if _, err := s.db.ExecContext(ctx, q, u.ID[:], level); err != nil {
		return fmt.Errorf("set privilege: %w", err)
	}
	slog.Info("privilege updated", "name", u.Name, "level", level)
	return nil
}
