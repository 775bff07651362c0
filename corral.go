// Package corral validates Better Auth sessions by reading the shared auth
// database directly, optionally supervising the Node auth server as a
// managed subprocess.
//
// Session validation works without the auth server; auto-starting it only
// makes login/signup endpoints available. Configure the spawned server's
// port via CORRAL_AUTH_PORT (default 3456) and its path via
// CORRAL_AUTH_SERVER.
//
// Usage:
//
//	v, err := corral.New(corral.Config{DBPath: "/data/auth.db", AutoStart: true})
//	if err != nil { ... }
//	defer v.Close()
//
//	user, err := v.ValidateSession(token)
//	if err != nil || user == nil { /* unauthorized */ }
package corral

import (
	"context"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/corralhq/corral-go/internal/auth"
	"github.com/corralhq/corral-go/internal/config"
	"github.com/corralhq/corral-go/internal/observability"
	"github.com/corralhq/corral-go/internal/supervisor"
)

// User is the principal produced by a successful session validation.
type User = auth.User

// Config wires a Validator.
type Config struct {
	// DBPath is the SQLite file path or PostgreSQL DSN of the shared auth
	// database. Required.
	DBPath string
	// Dialect is "sqlite" (default) or "postgres". It selects the driver
	// and placeholder syntax once; it is never inferred from the DSN.
	Dialect string

	// AutoStart spawns the Node auth server as a managed subprocess during
	// New and blocks until it reports ready or the readiness deadline
	// passes. Leave false where the auth server runs separately.
	AutoStart bool
	// AuthServerPath overrides the upward search for server/auth.js.
	AuthServerPath string
	// AuthPort is handed to the spawned server; defaults to 3456.
	AuthPort string

	// Logger replaces the default stderr JSON logger when set.
	Logger *zerolog.Logger
	// LogLevel applies to the default logger only.
	LogLevel string
}

// ConfigFromEnv reads the CORRAL_* environment surface.
func ConfigFromEnv(ctx context.Context) (Config, error) {
	ec, err := config.Load(ctx)
	if err != nil {
		return Config{}, err
	}
	return Config{
		DBPath:         ec.DBPath,
		Dialect:        ec.DBDialect,
		AutoStart:      ec.AutoStart,
		AuthServerPath: ec.AuthServerPath,
		AuthPort:       ec.AuthPort,
		LogLevel:       ec.LogLevel,
	}, nil
}

// Validator is the single object framework adapters talk to. Validation goes
// straight to the database and never consults the supervised process.
type Validator struct {
	svc *auth.Service
	sup *supervisor.Supervisor
	log zerolog.Logger
}

func New(cfg Config) (*Validator, error) {
	dialect, err := auth.DialectByName(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	store, err := auth.NewSQLStore(cfg.DBPath, dialect)
	if err != nil {
		return nil, err
	}
	svc, err := auth.NewService(store)
	if err != nil {
		return nil, fmt.Errorf("create session service: %w", err)
	}

	log := observability.NewLogger(observability.Options{Level: cfg.LogLevel})
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	v := &Validator{svc: svc, log: log}

	if cfg.AutoStart {
		v.sup = supervisor.New(supervisor.Config{
			ServerPath: cfg.AuthServerPath,
			SearchFrom: cfg.DBPath,
			Port:       cfg.AuthPort,
		}, log)
		v.sup.Start()
		supervisor.OnTerminate(v.sup.Stop)
	}

	return v, nil
}

// ValidateSession looks up a session token, checks expiry, and returns the
// user. A nil user with a nil error means unauthenticated: unknown token,
// expired session, or a user that no longer exists. A non-nil error is a
// database failure and should surface as a server error.
func (v *Validator) ValidateSession(token string) (*User, error) {
	return v.svc.ValidateSession(token)
}

// RequirePlan reports whether the user's plan meets the required minimum.
// Unknown plan names count as the lowest level on both sides.
func RequirePlan(u *User, plan string) bool {
	return auth.RequirePlan(u, plan)
}

// Close stops the supervised auth server, if one was started. Idempotent and
// safe to call concurrently with the signal relay; it never fails.
func (v *Validator) Close() error {
	if v.sup != nil {
		v.sup.Stop()
	}
	return nil
}

func (v *Validator) supervisorState() supervisor.State {
	if v.sup == nil {
		return supervisor.NotStarted
	}
	return v.sup.State()
}
