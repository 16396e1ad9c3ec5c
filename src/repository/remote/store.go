// backend/src/repository/remote/store.go
package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/username/centavo/backend/src/logger"
	"github.com/username/centavo/backend/src/models"
	"github.com/username/centavo/backend/src/repository"
)

// Store implements the staging repository against the hosted Postgres
// database, the remote source of truth. It owns the OCC-protected mutations
// and the single-transaction promotion that writes the ledger row and flips
// the staged record to processed as one unit.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectRecord = `
SELECT r.id, r.user_id, r.amount_minor_units, a.currency_code,
       r.description, r.date, r.account_id, r.category_id, r.exchange_rate,
       r.notes, r.source_text, r.status, r.version, r.deleted_at,
       r.created_at, r.updated_at
FROM staged_records r
LEFT JOIN accounts a ON a.id = r.account_id`

type scanner interface{ Scan(...any) error }

func scanRecord(row scanner) (models.StagedRecord, error) {
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
		&notes, &sourceText, &rec.Status, &rec.Version, &deletedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
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
	// The remote store has no local copy to reconcile with.
	rec.SyncStatus = models.SyncStatusSynced
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
		WHERE user_id = $1 AND status = 'pending' AND deleted_at IS NULL`, userID).Scan(&total)
	if err != nil {
		return repository.Page{}, fmt.Errorf("%w: count pending: %v", models.ErrRepository, err)
	}

	rows, err := s.db.QueryContext(ctx, selectRecord+`
		WHERE r.user_id = $1 AND r.status = 'pending' AND r.deleted_at IS NULL
		ORDER BY r.created_at ASC, r.id ASC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
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
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return repository.Page{}, fmt.Errorf("%w: iterate pending: %v", models.ErrRepository, err)
	}
	return repository.Page{Records: records, TotalCount: total}, nil
}

func (s *Store) GetByID(ctx context.Context, userID, id string) (models.StagedRecord, error) {
	rec, err := s.fetch(ctx, s.db, userID, id)
	if err != nil {
		return models.StagedRecord{}, err
	}
	if rec.DeletedAt != nil {
		return models.StagedRecord{}, models.ErrNotFound
	}
	return rec, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) fetch(ctx context.Context, q querier, userID, id string) (models.StagedRecord, error) {
	row := q.QueryRowContext(ctx, selectRecord+` WHERE r.id = $1 AND r.user_id = $2`, id, userID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StagedRecord{}, models.ErrNotFound
	}
	if err != nil {
		return models.StagedRecord{}, fmt.Errorf("%w: get record: %v", models.ErrRepository, err)
	}
	return rec, nil
}

func (s *Store) Create(ctx context.Context, userID string, in models.CreateStagedRecordInput) (models.StagedRecord, error) {
	id := uuid.NewString()

	var rate *string
	if in.ExchangeRate != nil {
		v := in.ExchangeRate.String()
		rate = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staged_records (
			id, user_id, amount_minor_units, description, date, account_id,
			category_id, exchange_rate, notes, source_text, status, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending', 1)`,
		id, userID, in.AmountMinorUnits, in.Description, in.Date, in.AccountID,
		in.CategoryID, rate, in.Notes, in.SourceText)
	if err != nil {
		return models.StagedRecord{}, fmt.Errorf("%w: insert record: %v", models.ErrRepository, err)
	}
	return s.GetByID(ctx, userID, id)
}

// Update is the update_with_version RPC: compare expectedVersion against the
// stored version, apply and bump on match, reject with the current version
// on mismatch.
func (s *Store) Update(ctx context.Context, userID, id string, in models.UpdateStagedRecordInput) (models.StagedRecord, error) {
	if in.IsEmpty() {
		return s.GetByID(ctx, userID, id)
	}

	expected, err := s.resolveExpectedVersion(ctx, userID, id, in.ExpectedVersion)
	if err != nil {
		return models.StagedRecord{}, err
	}

	set := []string{"version = version + 1", "updated_at = NOW()"}
	args := []any{id, userID, expected}
	n := len(args)

	addSet := func(column string, value any) {
		n++
		set = append(set, fmt.Sprintf("%s = $%d", column, n))
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
		WHERE id = $1 AND user_id = $2 AND version = $3 AND status = 'pending' AND deleted_at IS NULL`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.StagedRecord{}, fmt.Errorf("%w: update record: %v", models.ErrRepository, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return models.StagedRecord{}, s.classifyMiss(ctx, userID, id, expected)
	}

	logger.L.Info("Remote update applied", "recordID", id, "fromVersion", expected)
	return s.GetByID(ctx, userID, id)
}

func (s *Store) resolveExpectedVersion(ctx context.Context, userID, id string, expected *int64) (int64, error) {
	if expected != nil {
		return *expected, nil
	}
	// Backfill path: fetch the current version and use it as the baseline.
	rec, err := s.fetch(ctx, s.db, userID, id)
	if err != nil {
		return 0, err
	}
	return rec.Version, nil
}

func (s *Store) classifyMiss(ctx context.Context, userID, id string, expected int64) error {
	rec, err := s.fetch(ctx, s.db, userID, id)
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
	// Loop of single-item calls; documented as not server-atomic.
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

// Promote converts a staged record into a permanent ledger transaction. The
// version check, the ledger insert and the status flip run in one database
// transaction: either the ledger row exists and the record is processed, or
// neither happened.
func (s *Store) Promote(ctx context.Context, userID string, in models.PromoteStagedRecordInput) (models.PromotionResult, error) {
	if in.RecordID == "" {
		return models.PromotionResult{}, fmt.Errorf("%w: recordId is required", models.ErrValidation)
	}
	if in.AccountID == "" || in.CategoryID == "" {
		return models.PromotionResult{}, fmt.Errorf("%w: account and category are required for promotion", models.ErrPromotionFailed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.PromotionResult{}, fmt.Errorf("%w: begin promote: %v", models.ErrRepository, err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectRecord+` WHERE r.id = $1 AND r.user_id = $2 FOR UPDATE OF r`, in.RecordID, userID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PromotionResult{}, models.ErrNotFound
	}
	if err != nil {
		return models.PromotionResult{}, fmt.Errorf("%w: lock record: %v", models.ErrRepository, err)
	}

	switch {
	case rec.DeletedAt != nil:
		return models.PromotionResult{}, models.ErrNotFound
	case rec.Status == models.StagedStatusProcessed:
		return models.PromotionResult{}, models.ErrAlreadyProcessed
	}

	expected := rec.Version
	if in.ExpectedVersion != nil {
		expected = *in.ExpectedVersion
	}
	if expected != rec.Version {
		logger.L.Warn("Promotion version conflict", "recordID", in.RecordID, "expected", expected, "found", rec.Version)
		return models.PromotionResult{}, &models.VersionConflictError{Expected: expected, Found: rec.Version}
	}

	// Final* overrides beat the stored draft values.
	amount := rec.AmountMinorUnits
	if in.FinalAmountMinorUnits != nil {
		amount = in.FinalAmountMinorUnits
	}
	description := rec.Description
	if in.FinalDescription != nil {
		description = in.FinalDescription
	}
	date := rec.Date
	if in.FinalDate != nil {
		date = in.FinalDate
	}
	exchangeRate := rec.ExchangeRate
	if in.ExchangeRate != nil {
		exchangeRate = in.ExchangeRate
	}

	// The ledger schema has no notion of an incomplete transaction; this is
	// the server-side re-validation behind the client readiness check.
	switch {
	case amount == nil:
		return models.PromotionResult{}, fmt.Errorf("%w: amount is required", models.ErrPromotionFailed)
	case description == nil || strings.TrimSpace(*description) == "":
		return models.PromotionResult{}, fmt.Errorf("%w: description is required", models.ErrPromotionFailed)
	case date == nil:
		return models.PromotionResult{}, fmt.Errorf("%w: date is required", models.ErrPromotionFailed)
	case exchangeRate != nil && !exchangeRate.IsPositive():
		return models.PromotionResult{}, fmt.Errorf("%w: exchange rate must be positive", models.ErrPromotionFailed)
	}

	var rate *string
	if exchangeRate != nil {
		v := exchangeRate.String()
		rate = &v
	}

	ledgerID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, user_id, amount_minor_units, account_id, category_id,
			description, date, exchange_rate, staged_record_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ledgerID, userID, *amount, in.AccountID, in.CategoryID,
		*description, *date, rate, in.RecordID); err != nil {
		return models.PromotionResult{}, fmt.Errorf("%w: insert ledger transaction: %v", models.ErrRepository, err)
	}

	var newVersion int64
	if err := tx.QueryRowContext(ctx, `
		UPDATE staged_records
		SET status = 'processed', account_id = $3, category_id = $4,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING version`,
		in.RecordID, userID, in.AccountID, in.CategoryID).Scan(&newVersion); err != nil {
		return models.PromotionResult{}, fmt.Errorf("%w: mark record processed: %v", models.ErrRepository, err)
	}

	if err := tx.Commit(); err != nil {
		return models.PromotionResult{}, fmt.Errorf("%w: commit promote: %v", models.ErrRepository, err)
	}

	logger.L.Info("Staged record promoted", "recordID", in.RecordID, "ledgerTransactionID", ledgerID, "newVersion", newVersion)
	return models.PromotionResult{
		LedgerTransactionID: ledgerID,
		StagedRecordID:      in.RecordID,
		NewVersion:          newVersion,
	}, nil
}

// Dismiss is the dismiss_with_version RPC: tombstone the record, never
// delete it, so a repeated import cannot reintroduce it.
func (s *Store) Dismiss(ctx context.Context, userID, id string, expectedVersion *int64) error {
	expected, err := s.resolveExpectedVersion(ctx, userID, id, expectedVersion)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE staged_records
		SET status = 'ignored', deleted_at = NOW(), version = version + 1, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND version = $3 AND status = 'pending' AND deleted_at IS NULL`,
		id, userID, expected)
	if err != nil {
		return fmt.Errorf("%w: dismiss record: %v", models.ErrRepository, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return s.classifyMiss(ctx, userID, id, expected)
	}
	logger.L.Info("Staged record dismissed", "recordID", id, "fromVersion", expected)
	return nil
}

// CurrentVersion exposes the version probe used by clients on the backfill
// and pull-before-promote paths.
func (s *Store) CurrentVersion(ctx context.Context, userID, id string) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM staged_records WHERE id = $1 AND user_id = $2`, id, userID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: current version: %v", models.ErrRepository, err)
	}
	return version, nil
}
