package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fundihub.org/internal/auth"
	"fundihub.org/internal/provider"
)

// ApplicationStore implements provider.Store on PostgreSQL. The document
// checklist and portfolio are stored as jsonb.
type ApplicationStore struct {
	db *sql.DB
}

var _ provider.Store = (*ApplicationStore)(nil)

const appColumns = `provider_id, status, documents, portfolio, rejection_reason, submitted_at, approved_at, rejected_at, created_at, updated_at`

func (s *ApplicationStore) Create(ctx context.Context, app *provider.Application) error {
	docs, portfolio, err := marshalChecklist(app)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		insert into provider_applications
			(provider_id, status, documents, portfolio, rejection_reason, submitted_at, approved_at, rejected_at, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		on conflict (provider_id) do nothing`,
		app.ProviderID, string(app.Status), docs, portfolio, app.RejectionReason,
		app.SubmittedAt, app.ApprovedAt, app.RejectedAt, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return provider.ErrExists
	}
	return nil
}

func (s *ApplicationStore) Get(ctx context.Context, providerID string) (*provider.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+appColumns+` from provider_applications where provider_id = $1`, providerID)
	return scanApplication(row.Scan)
}

func (s *ApplicationStore) Update(ctx context.Context, app *provider.Application) error {
	docs, portfolio, err := marshalChecklist(app)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update provider_applications set
			status = $2, documents = $3, portfolio = $4, rejection_reason = $5,
			submitted_at = $6, approved_at = $7, rejected_at = $8, updated_at = $9
		where provider_id = $1`,
		app.ProviderID, string(app.Status), docs, portfolio, app.RejectionReason,
		app.SubmittedAt, app.ApprovedAt, app.RejectedAt, app.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return provider.ErrNotFound
	}
	return nil
}

func (s *ApplicationStore) ListByStatus(ctx context.Context, status auth.ProviderStatus) ([]*provider.Application, error) {
	query := `select ` + appColumns + ` from provider_applications`
	args := []any{}
	if status != auth.ProviderNone {
		query += ` where status = $1`
		args = append(args, string(status))
	}
	query += ` order by created_at asc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*provider.Application
	for rows.Next() {
		app, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func marshalChecklist(app *provider.Application) (docs, portfolio []byte, err error) {
	docs, err = json.Marshal(app.Documents)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal documents: %w", err)
	}
	items := app.Portfolio
	if items == nil {
		items = []provider.PortfolioItem{}
	}
	portfolio, err = json.Marshal(items)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal portfolio: %w", err)
	}
	return docs, portfolio, nil
}

func scanApplication(scan func(dest ...any) error) (*provider.Application, error) {
	var (
		app       provider.Application
		status    string
		docs      []byte
		portfolio []byte
	)
	err := scan(
		&app.ProviderID, &status, &docs, &portfolio, &app.RejectionReason,
		&app.SubmittedAt, &app.ApprovedAt, &app.RejectedAt,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, provider.ErrNotFound
		}
		return nil, err
	}
	app.Status = auth.ProviderStatus(status)
	if err := json.Unmarshal(docs, &app.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if app.Documents == nil {
		app.Documents = make(map[provider.DocumentKind]provider.Document)
	}
	if err := json.Unmarshal(portfolio, &app.Portfolio); err != nil {
		return nil, fmt.Errorf("unmarshal portfolio: %w", err)
	}
	return &app, nil
}
