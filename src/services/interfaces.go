// backend/src/services/interfaces.go
package services

import (
	"context"

	"github.com/username/centavo/backend/src/models"
	"github.com/username/centavo/backend/src/promotion"
	"github.com/username/centavo/backend/src/repository"
)

// IdentityProvider resolves the current user. Authentication mechanics live
// behind it; the service layer only ever sees an opaque user id.
type IdentityProvider interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// ErrorReporter is the observability sink for unexpected failures. Expected
// outcomes (not found, validation, version conflicts) are not reported.
type ErrorReporter interface {
	Report(err error, subsystem, operation string)
}

// StagingService is the application-facing surface over the staged-record
// inbox. It resolves the caller's identity once per call and delegates to
// the hybrid repository.
type StagingService interface {
	ListPending(ctx context.Context, offset, limit int) (repository.Page, error)
	Get(ctx context.Context, id string) (models.StagedRecord, error)
	Create(ctx context.Context, in models.CreateStagedRecordInput) (models.StagedRecord, error)
	Update(ctx context.Context, id string, in models.UpdateStagedRecordInput) (models.StagedRecord, error)
	CreateBatch(ctx context.Context, ins []models.CreateStagedRecordInput) ([]models.StagedRecord, error)
	UpdateBatch(ctx context.Context, items []repository.BatchUpdateItem) ([]models.StagedRecord, error)

	// Promote drives the full retry orchestration: pull-before-promote,
	// bounded conflict retries with jitter, terminal surfacing.
	Promote(ctx context.Context, in models.PromoteStagedRecordInput) (models.PromotionResult, error)
	Dismiss(ctx context.Context, id string, expectedVersion *int64) error

	// Readiness reports whether the stored record could be promoted right
	// now and which fields block it.
	Readiness(ctx context.Context, id string) (promotion.Readiness, error)
}
