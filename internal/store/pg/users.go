package pg

import (
	"context"
	"database/sql"
	"strings"

	"fundihub.org/internal/auth"
	"fundihub.org/internal/identity"
)

// UserStore implements identity.UserStore on PostgreSQL.
type UserStore struct {
	db *sql.DB
}

var _ identity.UserStore = (*UserStore)(nil)

const userColumns = `id, email, display_name, password_hash, role, active, email_verified, provider_status, created_at, updated_at`

func (s *UserStore) LookupByID(ctx context.Context, id string) (*identity.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (s *UserStore) LookupByEmail(ctx context.Context, email string) (*identity.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email = $1`,
		strings.TrimSpace(strings.ToLower(email)))
	return scanUser(row)
}

// Create inserts a new user record.
func (s *UserStore) Create(ctx context.Context, rec *identity.UserRecord) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, email, display_name, password_hash, role, active, email_verified, provider_status)
		values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID,
		strings.TrimSpace(strings.ToLower(rec.Email)),
		rec.DisplayName,
		rec.PasswordHash,
		rec.Role.String(),
		rec.Active,
		rec.EmailVerified,
		string(rec.ProviderStatus),
	)
	return err
}

// SetProviderStatus mirrors the application lifecycle state onto the user
// record so freshly resolved principals carry it.
func (s *UserStore) SetProviderStatus(ctx context.Context, id string, status auth.ProviderStatus) error {
	res, err := s.db.ExecContext(ctx,
		`update users set provider_status = $2, updated_at = now() where id = $1`,
		id, string(status))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*identity.UserRecord, error) {
	var (
		rec  identity.UserRecord
		role string
		ps   string
	)
	err := row.Scan(
		&rec.ID, &rec.Email, &rec.DisplayName, &rec.PasswordHash,
		&role, &rec.Active, &rec.EmailVerified, &ps,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, identity.ErrUserNotFound
		}
		return nil, err
	}
	kind, err := auth.ParseRoleKind(role)
	if err != nil {
		return nil, err
	}
	rec.Role = kind
	rec.ProviderStatus = auth.ProviderStatus(ps)
	return &rec, nil
}
