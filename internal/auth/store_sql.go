package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Queries are written with ? placeholders and rebound per dialect. The quoted
// camelCase identifiers match the tables the auth server owns.
const (
	sessionQuery = `SELECT "userId", "expiresAt" FROM "session" WHERE "token" = ?`
	userQuery    = `SELECT "id", "email", "name", "plan", "role", "emailVerified", "createdAt" FROM "user" WHERE "id" = ?`
)

// SQLStore reads the session and user tables owned by the external auth
// server. Every lookup opens a connection, runs one parameterized query, and
// releases it; validation is low-QPS and the backing store may be a plain
// SQLite file written concurrently by another process.
type SQLStore struct {
	dialect Dialect
	open    func() (*sql.DB, error)
}

func NewSQLStore(dsn string, dialect Dialect) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database path or DSN is required")
	}
	if dialect.Driver == "" {
		return nil, fmt.Errorf("dialect is required")
	}
	return &SQLStore{
		dialect: dialect,
		open: func() (*sql.DB, error) {
			return sql.Open(dialect.Driver, dsn)
		},
	}, nil
}

func (s *SQLStore) LookupSession(token string) (*SessionRow, error) {
	db, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var row SessionRow
	err = db.QueryRow(s.dialect.rebind(sessionQuery), token).Scan(&row.UserID, &row.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &row, nil
}

func (s *SQLStore) LookupUser(id string) (*User, error) {
	db, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var (
		u        User
		name     sql.NullString
		plan     sql.NullString
		role     sql.NullString
		verified sql.NullBool
		created  any
	)
	err = db.QueryRow(s.dialect.rebind(userQuery), id).
		Scan(&u.ID, &u.Email, &name, &plan, &role, &verified, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	u.Name = name.String
	u.Plan = plan.String
	u.Role = role.String
	u.EmailVerified = verified.Bool
	u.CreatedAt = timestampString(created)
	applyDefaults(&u)
	return &u, nil
}

// timestampString renders a createdAt value the way the backend stored it:
// SQLite hands back TEXT, postgres a time.Time.
func timestampString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
