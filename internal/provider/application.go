// Package provider models the service-provider onboarding lifecycle:
// document checklist, submission, admin review and resubmission.
package provider

import (
	"fmt"
	"strings"
	"time"

	"fundihub.org/internal/auth"
)

// DocumentKind identifies one singular checklist document. Portfolio items
// are variable-count and modeled separately (see PortfolioItem).
type DocumentKind string

const (
	DocNationalID      DocumentKind = "national_id"
	DocBusinessLicense DocumentKind = "business_license"
	DocCertificate     DocumentKind = "certificate"
	DocGoodConduct     DocumentKind = "good_conduct_certificate"
)

var documentKinds = map[DocumentKind]bool{
	DocNationalID:      true,
	DocBusinessLicense: true,
	DocCertificate:     true,
	DocGoodConduct:     true,
}

// requiredDocuments gate the Pending -> UnderReview transition. Certificate
// and portfolio items are optional.
var requiredDocuments = []DocumentKind{DocNationalID, DocBusinessLicense, DocGoodConduct}

// ParseDocumentKind converts wire input into a DocumentKind.
func ParseDocumentKind(s string) (DocumentKind, error) {
	kind := DocumentKind(strings.TrimSpace(strings.ToLower(s)))
	if !documentKinds[kind] {
		return "", fmt.Errorf("unknown document kind %q", s)
	}
	return kind, nil
}

// RequiredDocuments returns the kinds that must be uploaded before submission.
func RequiredDocuments() []DocumentKind {
	out := make([]DocumentKind, len(requiredDocuments))
	copy(out, requiredDocuments)
	return out
}

// Document tracks upload and review state for one checklist entry. The
// upload itself happens in the external blob store; only the reported flags
// live here.
type Document struct {
	Uploaded   bool       `json:"uploaded"`
	Verified   bool       `json:"verified"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

// PortfolioItem is one entry of the optional work-samples collection.
type PortfolioItem struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Application is one provider's onboarding instance. It is created Pending
// when a provider registers and retained forever for audit.
type Application struct {
	ProviderID      string                        `json:"provider_id"`
	Status          auth.ProviderStatus           `json:"status"`
	Documents       map[DocumentKind]Document     `json:"documents"`
	Portfolio       []PortfolioItem               `json:"portfolio,omitempty"`
	RejectionReason string                        `json:"rejection_reason,omitempty"`
	SubmittedAt     *time.Time                    `json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time                    `json:"approved_at,omitempty"`
	RejectedAt      *time.Time                    `json:"rejected_at,omitempty"`
	CreatedAt       time.Time                     `json:"created_at"`
	UpdatedAt       time.Time                     `json:"updated_at"`
}

// NewApplication creates a fresh Pending application for the provider.
func NewApplication(providerID string, now time.Time) *Application {
	return &Application{
		ProviderID: providerID,
		Status:     auth.ProviderPending,
		Documents:  make(map[DocumentKind]Document),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ChecklistComplete reports whether every required kind has been uploaded.
// Per-document verification is part of the admin review and does not gate
// submission.
func (a *Application) ChecklistComplete() bool {
	for _, kind := range requiredDocuments {
		if !a.Documents[kind].Uploaded {
			return false
		}
	}
	return true
}

// documentsUpdatedSince reports whether any document or portfolio item was
// uploaded after t.
func (a *Application) documentsUpdatedSince(t time.Time) bool {
	for _, doc := range a.Documents {
		if doc.UploadedAt != nil && doc.UploadedAt.After(t) {
			return true
		}
	}
	for _, item := range a.Portfolio {
		if item.UploadedAt.After(t) {
			return true
		}
	}
	return false
}

// editable reports whether the checklist may still change. No edits are
// permitted while an admin reviews the application, and an approved
// application is final.
func (a *Application) editable() bool {
	return a.Status == auth.ProviderPending || a.Status == auth.ProviderRejected
}

// Clone returns a deep copy so stored state never aliases caller state.
func (a *Application) Clone() *Application {
	out := *a
	out.Documents = make(map[DocumentKind]Document, len(a.Documents))
	for k, v := range a.Documents {
		if v.UploadedAt != nil {
			ts := *v.UploadedAt
			v.UploadedAt = &ts
		}
		out.Documents[k] = v
	}
	if a.Portfolio != nil {
		out.Portfolio = make([]PortfolioItem, len(a.Portfolio))
		copy(out.Portfolio, a.Portfolio)
	}
	out.SubmittedAt = cloneTime(a.SubmittedAt)
	out.ApprovedAt = cloneTime(a.ApprovedAt)
	out.RejectedAt = cloneTime(a.RejectedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ts := *t
	return &ts
}

// ResourceID implements auth.Owned.
func (a *Application) ResourceID() string { return a.ProviderID }

// OwnerID implements auth.Owned.
func (a *Application) OwnerID() string { return a.ProviderID }
