package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"fundihub.org/internal/auth"
	"fundihub.org/internal/ids"
)

// Service applies onboarding lifecycle transitions. Transitions for one
// provider serialize on a per-provider lock, so a concurrent loser fails
// against the post-mutation state instead of overwriting it.
type Service struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service over the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) lockFor(providerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[providerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[providerID] = l
	}
	return l
}

// Register creates the Pending application when a provider first signs up.
func (s *Service) Register(ctx context.Context, providerID string) (*Application, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, ErrNotFound
	}
	l := s.lockFor(providerID)
	l.Lock()
	defer l.Unlock()

	app := NewApplication(providerID, s.now().UTC())
	if err := s.store.Create(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Get returns the application for a provider.
func (s *Service) Get(ctx context.Context, providerID string) (*Application, error) {
	return s.store.Get(ctx, providerID)
}

// ListByStatus returns applications in the given state; ProviderNone lists
// all. Used by the admin review queue.
func (s *Service) ListByStatus(ctx context.Context, status auth.ProviderStatus) ([]*Application, error) {
	return s.store.ListByStatus(ctx, status)
}

// RecordDocument stores the uploaded flag reported by the blob-store
// collaborator for one checklist document. Only the owning provider may
// report uploads, and only while the checklist is editable.
func (s *Service) RecordDocument(ctx context.Context, caller *auth.Principal, providerID string, kind DocumentKind) (*Application, error) {
	return s.mutate(ctx, caller, providerID, false, func(app *Application) error {
		if !app.editable() {
			return invalidTransition(EventRecordDocument, app.Status, "checklist is locked")
		}
		now := s.now().UTC()
		doc := app.Documents[kind]
		doc.Uploaded = true
		doc.Verified = false
		doc.UploadedAt = &now
		app.Documents[kind] = doc
		return nil
	})
}

// AddPortfolioItem appends one optional work sample.
func (s *Service) AddPortfolioItem(ctx context.Context, caller *auth.Principal, providerID, url string) (*Application, error) {
	url = strings.TrimSpace(url)
	return s.mutate(ctx, caller, providerID, false, func(app *Application) error {
		if !app.editable() {
			return invalidTransition(EventRecordDocument, app.Status, "checklist is locked")
		}
		if url == "" {
			return invalidTransition(EventRecordDocument, app.Status, "portfolio url is required")
		}
		app.Portfolio = append(app.Portfolio, PortfolioItem{
			ID:         ids.New(),
			URL:        url,
			UploadedAt: s.now().UTC(),
		})
		return nil
	})
}

// SetDocumentVerified flips the per-document verified flag during admin
// review. It is part of the review process, not a lifecycle transition.
func (s *Service) SetDocumentVerified(ctx context.Context, caller *auth.Principal, providerID string, kind DocumentKind, verified bool) (*Application, error) {
	return s.mutate(ctx, caller, providerID, true, func(app *Application) error {
		if app.Status != auth.ProviderUnderReview {
			return invalidTransition(EventVerifyDocument, app.Status, "application is not under review")
		}
		doc, ok := app.Documents[kind]
		if !ok || !doc.Uploaded {
			return invalidTransition(EventVerifyDocument, app.Status, "document was not uploaded")
		}
		doc.Verified = verified
		app.Documents[kind] = doc
		return nil
	})
}

// Submit moves Pending -> UnderReview once every required document has been
// uploaded.
func (s *Service) Submit(ctx context.Context, caller *auth.Principal, providerID string) (*Application, error) {
	return s.mutate(ctx, caller, providerID, false, func(app *Application) error {
		if app.Status != auth.ProviderPending {
			return invalidTransition(EventSubmit, app.Status, "")
		}
		if !app.ChecklistComplete() {
			return invalidTransition(EventSubmit, app.Status, "required documents are missing")
		}
		now := s.now().UTC()
		app.Status = auth.ProviderUnderReview
		app.SubmittedAt = &now
		return nil
	})
}

// Approve moves UnderReview -> Approved. Approved is terminal.
func (s *Service) Approve(ctx context.Context, caller *auth.Principal, providerID string) (*Application, error) {
	return s.mutate(ctx, caller, providerID, true, func(app *Application) error {
		if app.Status != auth.ProviderUnderReview {
			return invalidTransition(EventApprove, app.Status, "")
		}
		now := s.now().UTC()
		app.Status = auth.ProviderApproved
		app.ApprovedAt = &now
		return nil
	})
}

// Reject moves UnderReview -> Rejected with a mandatory reason.
func (s *Service) Reject(ctx context.Context, caller *auth.Principal, providerID, reason string) (*Application, error) {
	reason = strings.TrimSpace(reason)
	return s.mutate(ctx, caller, providerID, true, func(app *Application) error {
		if app.Status != auth.ProviderUnderReview {
			return invalidTransition(EventReject, app.Status, "")
		}
		if reason == "" {
			return invalidTransition(EventReject, app.Status, "rejection reason is required")
		}
		now := s.now().UTC()
		app.Status = auth.ProviderRejected
		app.RejectedAt = &now
		app.RejectionReason = reason
		return nil
	})
}

// Resubmit moves Rejected -> UnderReview after the provider updated at
// least one document. Resubmission while UnderReview is rejected so the
// application cannot become a moving target during review. ApprovedAt from
// an earlier round is preserved for audit; only the rejection fields reset.
func (s *Service) Resubmit(ctx context.Context, caller *auth.Principal, providerID string) (*Application, error) {
	return s.mutate(ctx, caller, providerID, false, func(app *Application) error {
		if app.Status != auth.ProviderRejected {
			return invalidTransition(EventResubmit, app.Status, "")
		}
		if app.RejectedAt == nil || !app.documentsUpdatedSince(*app.RejectedAt) {
			return invalidTransition(EventResubmit, app.Status, "no documents updated since rejection")
		}
		now := s.now().UTC()
		app.Status = auth.ProviderUnderReview
		app.RejectedAt = nil
		app.RejectionReason = ""
		app.SubmittedAt = &now
		return nil
	})
}

// mutate runs one guarded read-modify-write under the provider's lock.
// adminOnly requires the review permission; otherwise the caller must be
// the owning provider. No partial state is ever written: the store sees
// the application only after fn succeeds.
func (s *Service) mutate(ctx context.Context, caller *auth.Principal, providerID string, adminOnly bool, fn func(*Application) error) (*Application, error) {
	if caller == nil {
		return nil, auth.ErrUnauthenticated
	}
	l := s.lockFor(providerID)
	l.Lock()
	defer l.Unlock()

	app, err := s.store.Get(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if adminOnly {
		if err := auth.RequirePermission(caller, auth.PermApplicationReview); err != nil {
			return nil, err
		}
	} else if caller.ID != app.ProviderID {
		// No admin bypass on owner actions: the application is the
		// provider's own attestation and only they may change it.
		return nil, auth.ErrForbidden
	}
	if err := fn(app); err != nil {
		return nil, err
	}
	app.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}
