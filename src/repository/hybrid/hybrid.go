// backend/src/repository/hybrid/hybrid.go
package hybrid

import (
	"context"

	"github.com/username/centavo/backend/src/logger"
	"github.com/username/centavo/backend/src/models"
	"github.com/username/centavo/backend/src/repository"
)

// LocalStore is the slice of the local adapter the router needs: the full
// staging contract, the sync hooks, and the promotion mirror.
type LocalStore interface {
	repository.StagingRepository
	repository.SyncStore
	MarkPromoted(ctx context.Context, userID, id string, version int64) error
}

// Repository routes staging operations between the offline-capable local
// store and the remote authority. Reads and ordinary writes stay local so
// the app works offline; promotion is ledger-mutating and therefore goes to
// the remote store only — the local copy never flips a record to processed
// on its own.
type Repository struct {
	local  LocalStore
	remote repository.StagingRepository
}

func New(local LocalStore, remote repository.StagingRepository) *Repository {
	return &Repository{local: local, remote: remote}
}

func (r *Repository) GetPendingPage(ctx context.Context, userID string, offset, limit int) (repository.Page, error) {
	return r.local.GetPendingPage(ctx, userID, offset, limit)
}

func (r *Repository) GetByID(ctx context.Context, userID, id string) (models.StagedRecord, error) {
	return r.local.GetByID(ctx, userID, id)
}

func (r *Repository) Create(ctx context.Context, userID string, in models.CreateStagedRecordInput) (models.StagedRecord, error) {
	return r.local.Create(ctx, userID, in)
}

func (r *Repository) Update(ctx context.Context, userID, id string, in models.UpdateStagedRecordInput) (models.StagedRecord, error) {
	return r.local.Update(ctx, userID, id, in)
}

func (r *Repository) CreateBatch(ctx context.Context, userID string, ins []models.CreateStagedRecordInput) ([]models.StagedRecord, error) {
	return r.local.CreateBatch(ctx, userID, ins)
}

func (r *Repository) UpdateBatch(ctx context.Context, userID string, items []repository.BatchUpdateItem) ([]models.StagedRecord, error) {
	return r.local.UpdateBatch(ctx, userID, items)
}

// Promote goes to the remote authority only. On success the local copy is
// updated to mirror the processed state; a failed mirror is logged and
// swallowed because the remote result is authoritative and the sync engine
// repairs the copy on its next pass.
func (r *Repository) Promote(ctx context.Context, userID string, in models.PromoteStagedRecordInput) (models.PromotionResult, error) {
	result, err := r.remote.Promote(ctx, userID, in)
	if err != nil {
		return models.PromotionResult{}, err
	}
	if mirrorErr := r.local.MarkPromoted(ctx, userID, result.StagedRecordID, result.NewVersion); mirrorErr != nil {
		logger.L.Warn("Failed to mirror promotion into local store", "recordID", result.StagedRecordID, "error", mirrorErr)
	}
	return result, nil
}

// Dismiss is an ordinary (non-ledger) write: it lands locally and reaches
// the remote authority through the sync engine like any other edit.
func (r *Repository) Dismiss(ctx context.Context, userID, id string, expectedVersion *int64) error {
	return r.local.Dismiss(ctx, userID, id, expectedVersion)
}

// Sync-engine hooks, all local by definition.

func (r *Repository) PendingSync(ctx context.Context, userID string) ([]models.StagedRecord, error) {
	return r.local.PendingSync(ctx, userID)
}

func (r *Repository) Conflicted(ctx context.Context, userID string) ([]models.StagedRecord, error) {
	return r.local.Conflicted(ctx, userID)
}

func (r *Repository) SetSyncStatus(ctx context.Context, id string, status models.SyncStatus) error {
	return r.local.SetSyncStatus(ctx, id, status)
}

func (r *Repository) BeginPush(id string) {
	r.local.BeginPush(id)
}

func (r *Repository) ReleasePush(ctx context.Context, id string) error {
	return r.local.ReleasePush(ctx, id)
}
