// backend/src/repository/local/store.go
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/username/centavo/backend/src/logger"
	"github.com/username/centavo/backend/src/models"
	"github.com/username/centavo/backend/src/repository"
	"github.com/username/centavo/backend/src/synclock"
)

// Store implements the staging repository against the embedded SQLite
// database. It owns id generation, tombstone filtering and the write-buffer
// behaviour for records that are mid-push to the remote authority.
type Store struct {
	db    *sql.DB
	locks *synclock.Registry
	now   func() time.Time
}

func NewStore(db *sql.DB, locks *synclock.Registry) *Store {
	return &Store{db: db, locks: locks, now: func() time.Time { return time.Now().UTC() }}
}

// The currency of a staged record is never stored on the record itself; it is
// derived from the selected account at read time.
const selectRecord = `
SELECT r.id, r.user_id, r.amount_minor_units, a.currency_code,
       r.description, r.date, r.account_id, r.category_id, r.exchange_rate,
       r.notes, r.source_text, r.status, r.version, r.sync_status,
       r.deleted_at, r.created_at, r.updated_at
FROM staged_records r
LEFT JOIN accounts a ON a.id = r.account_id`

func scanRecord(row interface{ Scan(...any) error }) (models.StagedRecord, error) {
	var (
		rec          models.StagedRecord
		amount       sql.NullInt64
		currency     sql.NullString
		description  sql.NullString
		date         sql.NullString
		accountID    sql.NullString
		categoryID   sql.NullString
		exchangeRate sql.NullString
		notes        sql.NullString
		sourceText   sql.NullString
		deletedAt    sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &amount, &currency,
		&description, &date, &accountID, &categoryID, &exchangeRate,
		&notes, &sourceText, &rec.Status, &rec.Version, &rec.SyncStatus,
		&deletedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return models.StagedRecord{}, err
	}
	if amount.Valid {
		rec.AmountMinorUnits = &amount.Int64
	}
	if currency.Valid {
		rec.CurrencyCode = &currency.String
	}
	if description.Valid {
		rec.Description = &description.String
	}
	if date.Valid {
		rec.Date = &date.String
	}
	if accountID.Valid {
		rec.AccountID = &accountID.String
	}
	if categoryID.Valid {
		rec.CategoryID = &categoryID.String
	}
	if exchangeRate.Valid {
		d, derr := decimal.NewFromString(exchangeRate.String)
		if derr != nil {
			return models.StagedRecord{}, fmt.Errorf("parse exchange rate %q: %w", exchangeRate.String, derr)
		}
		rec.ExchangeRate = &d
	}
	if notes.Valid {
		rec.Notes = &notes.String
	}
	if sourceText.Valid {
		rec.SourceText = &sourceText.String
	}
	if deletedAt.Valid {
		rec.DeletedAt = &deletedAt.Time
	}
	return rec, nil
}

func (s *Store) GetPendingPage(ctx context.Context, userID string, offset, limit int) (repository.Page, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM staged_records
		WHERE user_id = ? AND status = 'pending' AND deleted_at IS NULL`, userID).Scan(&total)
	if err != nil {
		return repository.Page{}, fmt.Errorf("%w: count pending: %v", models.ErrRepository, err)
	}

	// Oldest first: the inbox is a FIFO backlog.
	rows, err := s.db.QueryContext(ctx, selectRecord+`
		WHERE r.user_id = ? AND r.status = 'pending' AND r.deleted_at IS NULL
		ORDER BY r.created_at ASC, r.id ASC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return repository.Page{}, fmt.Errorf("%w: query pending: %v", models.ErrRepository, err)
	}
	defer rows.Close()

	records := []models.StagedRecord{}
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return repository.Page{}, fmt.Errorf("%w: scan pending: %v", models.ErrRepository, scanErr)
		}
		records = append(records, s.withOverlay(rec))
	}
	if err = rows.Err(); err != nil {
		return repository.Page{}, fmt.Errorf("%w: iterate pending: %v", models.ErrRepository, err)
	}
	return repository.Page{Records: records, TotalCount: total}, nil
}

func (s *Store) GetByID(ctx context.Context, userID, id string) (models.StagedRecord, error) {
	rec, err := s.fetch(ctx, userID, id)
	if err != nil {
		return models.StagedRecord{}, err
	}
	if rec.DeletedAt != nil {
		return models.StagedRecord{}, models.ErrNotFound
	}
	return s.withOverlay(rec), nil
}

// AnyByID bypasses tombstone filtering. The sync engine needs dismissed
// records too: a tombstone still has to be pushed.
func (s *Store) AnyByID(ctx context.Context, userID, id string) (models.StagedRecord, error) {
	return s.fetch(ctx, userID, id)
}

func (s *Store) fetch(ctx context.Context, userID, id string) (models.StagedRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE r.id = ? AND r.user_id = ?`, id, userID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StagedRecord{}, models.ErrNotFound
	}
	if err != nil {
		return models.StagedRecord{}, fmt.Errorf("%w: get record: %v", models.ErrRepository, err)
	}
	return rec, nil
}

// withOverlay merges any buffered patch over the record so reads reflect the
// user's pending edit while a push is in flight.
func (s *Store) withOverlay(rec models.StagedRecord) models.StagedRecord {
	if patch, ok := s.locks.Buffered(rec.ID); ok {
		return patch.ApplyTo(rec)
	}
	return rec
}

func (s *Store) Create(ctx context.Context, userID string, in models.CreateStagedRecordInput) (models.StagedRecord, error) {
	id := uuid.NewString()
	now := s.now()

	var rate *string
	if in.ExchangeRate != nil {
		v := in.ExchangeRate.String()
		rate = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staged_records (
			id, user_id, amount_minor_units, description, date, account_id,
			category_id, exchange_rate, notes, source_text, status, version,
			sync_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', 1, 'pending', ?, ?)`,
		id, userID, in.AmountMinorUnits, in.Description, in.Date, in.AccountID,
		in.CategoryID, rate, in.Notes, in.SourceText, now, now)
	if err != nil {
		return models.StagedRecord{}, fmt.Errorf("%w: insert record: %v", models.ErrRepository, err)
	}
	return s.GetByID(ctx, userID, id)
}

func (s *Store) Update(ctx context.Context, userID, id string, in models.UpdateStagedRecordInput) (models.StagedRecord, error) {
	if in.IsEmpty() {
		return s.GetByID(ctx, userID, id)
	}

	// A record mid-push must not be written under the sync engine's feet;
	// capture the patch and surface it as a read overlay instead.
	if s.locks.Locked(id) {
		rec, err := s.fetch(ctx, userID, id)
		if err != nil {
			return models.StagedRecord{}, err
		}
		if rec.DeletedAt != nil {
			return models.StagedRecord{}, models.ErrNotFound
		}
		buffered := in
		buffered.ExpectedVersion = nil
		s.locks.Buffer(id, buffered)
		logger.L.Debug("Buffered write for record locked by sync", "recordID", id)
		return s.withOverlay(rec), nil
	}

	expected, err := s.resolveExpectedVersion(ctx, userID, id, in.ExpectedVersion)
	if err != nil {
		return models.StagedRecord{}, err
	}

	set := []string{"version = version + 1", "sync_status = ?", "updated_at = ?"}
	args := []any{models.SyncStatusPending, s.now()}

	addSet := func(column string, value any) {
		set = append(set, column+" = ?")
		args = append(args, value)
	}
	addClear := func(column string) {
		set = append(set, column+" = NULL")
	}

	if v, ok := in.AmountMinorUnits.Value(); ok {
		addSet("amount_minor_units", v)
	} else if in.AmountMinorUnits.IsClear() {
		addClear("amount_minor_units")
	}
	if v, ok := in.Description.Value(); ok {
		addSet("description", v)
	} else if in.Description.IsClear() {
		addClear("description")
	}
	if v, ok := in.Date.Value(); ok {
		addSet("date", v)
	} else if in.Date.IsClear() {
		addClear("date")
	}
	if v, ok := in.AccountID.Value(); ok {
		addSet("account_id", v)
	} else if in.AccountID.IsClear() {
		addClear("account_id")
	}
	if v, ok := in.CategoryID.Value(); ok {
		addSet("category_id", v)
	} else if in.CategoryID.IsClear() {
		addClear("category_id")
	}
	if v, ok := in.ExchangeRate.Value(); ok {
		addSet("exchange_rate", v.String())
	} else if in.ExchangeRate.IsClear() {
		addClear("exchange_rate")
	}
	if v, ok := in.Notes.Value(); ok {
		addSet("notes", v)
	} else if in.Notes.IsClear() {
		addClear("notes")
	}

	query := "UPDATE staged_records SET " + strings.Join(set, ", ") + `
		WHERE id = ? AND user_id = ? AND version = ? AND status = 'pending' AND deleted_at IS NULL`
	args = append(args, id, userID, expected)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.StagedRecord{}, fmt.Errorf("%w: update record: %v", models.ErrRepository, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return models.StagedRecord{}, s.classifyMiss(ctx, userID, id, expected)
	}
	return s.GetByID(ctx, userID, id)
}

// resolveExpectedVersion backfills a missing expectedVersion from the store.
// This is the weaker legacy path; new callers read before writing.
func (s *Store) resolveExpectedVersion(ctx context.Context, userID, id string, expected *int64) (int64, error) {
	if expected != nil {
		return *expected, nil
	}
	rec, err := s.fetch(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	return rec.Version, nil
}

// classifyMiss explains a zero-row OCC update: gone, tombstoned, already in a
// terminal state, or a genuine version conflict.
func (s *Store) classifyMiss(ctx context.Context, userID, id string, expected int64) error {
	rec, err := s.fetch(ctx, userID, id)
	if err != nil {
		return err
	}
	switch {
	case rec.DeletedAt != nil:
		return models.ErrNotFound
	case rec.Status == models.StagedStatusProcessed:
		return models.ErrAlreadyProcessed
	case rec.Version != expected:
		return &models.VersionConflictError{Expected: expected, Found: rec.Version}
	default:
		return fmt.Errorf("%w: record %s not updatable", models.ErrRepository, id)
	}
}

func (s *Store) CreateBatch(ctx context.Context, userID string, ins []models.CreateStagedRecordInput) ([]models.StagedRecord, error) {
	// Loop of single-item creates; not atomic. Stops at the first failure
	// and returns what was created before it.
	out := make([]models.StagedRecord, 0, len(ins))
	for i, in := range ins {
		rec, err := s.Create(ctx, userID, in)
		if err != nil {
			return out, fmt.Errorf("batch create item %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) UpdateBatch(ctx context.Context, userID string, items []repository.BatchUpdateItem) ([]models.StagedRecord, error) {
	out := make([]models.StagedRecord, 0, len(items))
	for i, item := range items {
		rec, err := s.Update(ctx, userID, item.ID, item.Input)
		if err != nil {
			return out, fmt.Errorf("batch update item %d (%s): %w", i, item.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Promote is deliberately not supported locally: the ledger write and the
// status flip must happen in one transaction on the remote authority, and
// keeping promotion off the local write path is what prevents two
// authorities from mutating the same version.
func (s *Store) Promote(ctx context.Context, userID string, in models.PromoteStagedRecordInput) (models.PromotionResult, error) {
	return models.PromotionResult{}, fmt.Errorf("%w: promote is remote-only", models.ErrRepository)
}

func (s *Store) Dismiss(ctx context.Context, userID, id string, expectedVersion *int64) error {
	if s.locks.Locked(id) {
		return fmt.Errorf("%w: record %s is mid-sync", models.ErrRepository, id)
	}
	expected, err := s.resolveExpectedVersion(ctx, userID, id, expectedVersion)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE staged_records
		SET status = 'ignored', deleted_at = ?, version = version + 1,
		    sync_status = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND version = ? AND status = 'pending' AND deleted_at IS NULL`,
		s.now(), models.SyncStatusPending, s.now(), id, userID, expected)
	if err != nil {
		return fmt.Errorf("%w: dismiss record: %v", models.ErrRepository, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return s.classifyMiss(ctx, userID, id, expected)
	}
	return nil
}

// MarkPromoted mirrors a remote promotion into the local copy so the record
// leaves the pending set everywhere. The remote authority owns the version;
// the local copy adopts it.
func (s *Store) MarkPromoted(ctx context.Context, userID, id string, version int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE staged_records
		SET status = 'processed', version = ?, sync_status = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		version, models.SyncStatusSynced, s.now(), id, userID)
	if err != nil {
		return fmt.Errorf("%w: mark promoted: %v", models.ErrRepository, err)
	}
	return nil
}

func (s *Store) PendingSync(ctx context.Context, userID string) ([]models.StagedRecord, error) {
	return s.bySyncStatus(ctx, userID, models.SyncStatusPending)
}

func (s *Store) Conflicted(ctx context.Context, userID string) ([]models.StagedRecord, error) {
	return s.bySyncStatus(ctx, userID, models.SyncStatusConflict)
}

func (s *Store) bySyncStatus(ctx context.Context, userID string, status models.SyncStatus) ([]models.StagedRecord, error) {
	// Tombstones are included on purpose: dismissals have to reach the
	// remote authority like any other mutation.
	rows, err := s.db.QueryContext(ctx, selectRecord+`
		WHERE r.user_id = ? AND r.sync_status = ?
		ORDER BY r.updated_at ASC, r.id ASC`, userID, status)
	if err != nil {
		return nil, fmt.Errorf("%w: query by sync status: %v", models.ErrRepository, err)
	}
	defer rows.Close()

	var records []models.StagedRecord
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: scan by sync status: %v", models.ErrRepository, scanErr)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate by sync status: %v", models.ErrRepository, err)
	}
	return records, nil
}

func (s *Store) SetSyncStatus(ctx context.Context, id string, status models.SyncStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE staged_records SET sync_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("%w: set sync status: %v", models.ErrRepository, err)
	}
	return nil
}

// BeginPush locks the record for the duration of an in-flight push.
func (s *Store) BeginPush(id string) {
	s.locks.Lock(id)
}

// ReleasePush clears the push lock and commits the write buffered while it
// was held, if any. The buffered patch is applied on top of whatever the
// push landed, with a backfilled version.
func (s *Store) ReleasePush(ctx context.Context, id string) error {
	patch, ok := s.locks.Release(id)
	if !ok {
		return nil
	}
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM staged_records WHERE id = ?`, id).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: resolve buffered record owner: %v", models.ErrRepository, err)
	}
	patch.ExpectedVersion = nil
	if _, err := s.Update(ctx, userID, id, patch); err != nil {
		return fmt.Errorf("commit buffered write for %s: %w", id, err)
	}
	logger.L.Info("Committed buffered write after sync", "recordID", id)
	return nil
}
