// backend/src/repository/repository.go
package repository

import (
	"context"

	"github.com/username/centavo/backend/src/models"
)

// Page is one slice of the pending backlog, oldest first, plus the total so
// the UI can render pagination.
type Page struct {
	Records    []models.StagedRecord `json:"records"`
	TotalCount int                   `json:"totalCount"`
}

// BatchUpdateItem pairs a record id with its patch for UpdateBatch.
type BatchUpdateItem struct {
	ID    string                         `json:"id"`
	Input models.UpdateStagedRecordInput `json:"input"`
}

// StagingRepository is the platform-agnostic contract over the staged-record
// inbox. Every operation takes the calling user's identity explicitly and
// returns an error kind from the models package instead of panicking. Both
// the local (offline) and remote (authoritative) adapters implement it.
type StagingRepository interface {
	// GetPendingPage returns active pending records oldest-first. Processed
	// records and tombstones never appear.
	GetPendingPage(ctx context.Context, userID string, offset, limit int) (Page, error)

	// GetByID fails with models.ErrNotFound when the record is absent,
	// tombstoned, or owned by a different user.
	GetByID(ctx context.Context, userID, id string) (models.StagedRecord, error)

	// Create assigns the id, sets version 1 and status pending.
	Create(ctx context.Context, userID string, in models.CreateStagedRecordInput) (models.StagedRecord, error)

	// Update applies a versioned partial update (see models.Field semantics).
	Update(ctx context.Context, userID, id string, in models.UpdateStagedRecordInput) (models.StagedRecord, error)

	// CreateBatch and UpdateBatch are loops of single-item calls, not atomic
	// batches: they stop at the first failure and return whatever succeeded
	// before it. Callers that need all-or-nothing must not use them.
	CreateBatch(ctx context.Context, userID string, ins []models.CreateStagedRecordInput) ([]models.StagedRecord, error)
	UpdateBatch(ctx context.Context, userID string, items []BatchUpdateItem) ([]models.StagedRecord, error)

	// Promote atomically creates the ledger transaction and marks the staged
	// record processed; on any error nothing changes on either side.
	Promote(ctx context.Context, userID string, in models.PromoteStagedRecordInput) (models.PromotionResult, error)

	// Dismiss tombstones the record (status ignored, deletedAt set). The
	// record stays addressable forever to block duplicate re-imports. A nil
	// expectedVersion makes the authority backfill the current version.
	Dismiss(ctx context.Context, userID, id string, expectedVersion *int64) error
}

// SyncStore is the local-store surface the sync engine drives: which records
// still need pushing, which landed in conflict, and status transitions as
// pushes start and finish.
type SyncStore interface {
	PendingSync(ctx context.Context, userID string) ([]models.StagedRecord, error)
	Conflicted(ctx context.Context, userID string) ([]models.StagedRecord, error)
	SetSyncStatus(ctx context.Context, id string, status models.SyncStatus) error

	// BeginPush locks the record against local writes for the duration of an
	// in-flight push; ReleasePush clears the lock and commits any write
	// buffered while it was held.
	BeginPush(id string)
	ReleasePush(ctx context.Context, id string) error
}
