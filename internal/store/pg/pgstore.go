// Package pg implements the user and provider-application stores on
// PostgreSQL via database/sql and the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fundihub.org/internal/identity"
	"fundihub.org/internal/obs"
)

// Store wraps one connection pool shared by the user and application stores.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing pool (used by tests with sqlmock).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping checks connectivity; /readyz and the health monitor use it.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Users returns the primary user store.
func (s *Store) Users() *UserStore { return &UserStore{db: s.db} }

// Applications returns the provider-application store.
func (s *Store) Applications() *ApplicationStore { return &ApplicationStore{db: s.db} }

// EnsureSchema creates the tables this service owns.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
create table if not exists users (
	id text primary key,
	email text not null unique,
	display_name text not null default '',
	password_hash text not null default '',
	role text not null default 'client',
	active boolean not null default true,
	email_verified boolean not null default false,
	provider_status text not null default '',
	created_at timestamptz not null default now(),
	updated_at timestamptz not null default now()
);

create table if not exists provider_applications (
	provider_id text primary key,
	status text not null,
	documents jsonb not null default '{}'::jsonb,
	portfolio jsonb not null default '[]'::jsonb,
	rejection_reason text not null default '',
	submitted_at timestamptz,
	approved_at timestamptz,
	rejected_at timestamptz,
	created_at timestamptz not null default now(),
	updated_at timestamptz not null default now()
);

create index if not exists provider_applications_status_idx
	on provider_applications (status, created_at);
`

// MonitorHealth pings the pool on the given interval and publishes the
// result to the process-wide reachability flag consulted by the identity
// resolver. It blocks until ctx is cancelled.
func (s *Store) MonitorHealth(ctx context.Context, health *identity.Health, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := s.db.PingContext(pingCtx)
			cancel()
			wasReachable := health.Reachable()
			health.SetReachable(err == nil)
			if wasReachable && err != nil {
				obs.LogRequest(map[string]any{
					"ts":    time.Now().UTC().Format(time.RFC3339Nano),
					"level": "error",
					"msg":   "primary_store_unreachable",
					"error": err.Error(),
				})
			}
			if !wasReachable && err == nil {
				obs.LogRequest(map[string]any{
					"ts":    time.Now().UTC().Format(time.RFC3339Nano),
					"level": "info",
					"msg":   "primary_store_recovered",
				})
			}
		}
	}
}
