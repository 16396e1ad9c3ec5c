package models

import "github.com/shopspring/decimal"

// CreateStagedRecordInput creates a scratchpad record. Every field is
// optional; the adapter assigns id, version 1 and pending status.
type CreateStagedRecordInput struct {
	AmountMinorUnits *int64           `json:"amountMinorUnits"`
	Description      *string          `json:"description"`
	Date             *string          `json:"date"`
	AccountID        *string          `json:"accountId"`
	CategoryID       *string          `json:"categoryId"`
	ExchangeRate     *decimal.Decimal `json:"exchangeRate"`
	Notes            *string          `json:"notes"`
	SourceText       *string          `json:"sourceText"`
}

// UpdateStagedRecordInput is a versioned partial update. Each Field
// distinguishes "not supplied" from "explicitly cleared" from "set";
// SourceText is immutable and therefore absent. ExpectedVersion nil is the
// legacy backfill path where the authority reads the current version first.
type UpdateStagedRecordInput struct {
	AmountMinorUnits Field[int64]           `json:"amountMinorUnits"`
	Description      Field[string]          `json:"description"`
	Date             Field[string]          `json:"date"`
	AccountID        Field[string]          `json:"accountId"`
	CategoryID       Field[string]          `json:"categoryId"`
	ExchangeRate     Field[decimal.Decimal] `json:"exchangeRate"`
	Notes            Field[string]          `json:"notes"`

	ExpectedVersion *int64 `json:"expectedVersion"`
}

// IsEmpty reports whether the patch carries no field changes at all.
func (in UpdateStagedRecordInput) IsEmpty() bool {
	return in.AmountMinorUnits.IsUnset() &&
		in.Description.IsUnset() &&
		in.Date.IsUnset() &&
		in.AccountID.IsUnset() &&
		in.CategoryID.IsUnset() &&
		in.ExchangeRate.IsUnset() &&
		in.Notes.IsUnset()
}

// ApplyTo returns a copy of rec with the patch's field changes applied.
// Version and lifecycle fields are untouched; this is the read-time overlay
// used while a buffered write waits behind a sync lock.
func (in UpdateStagedRecordInput) ApplyTo(rec StagedRecord) StagedRecord {
	rec.AmountMinorUnits = in.AmountMinorUnits.Apply(rec.AmountMinorUnits)
	rec.Description = in.Description.Apply(rec.Description)
	rec.Date = in.Date.Apply(rec.Date)
	rec.AccountID = in.AccountID.Apply(rec.AccountID)
	rec.CategoryID = in.CategoryID.Apply(rec.CategoryID)
	rec.ExchangeRate = in.ExchangeRate.Apply(rec.ExchangeRate)
	rec.Notes = in.Notes.Apply(rec.Notes)
	return rec
}

// MergeUpdates layers overlay on top of base, field by field. The later
// patch wins wherever it carries a state.
func MergeUpdates(base, overlay UpdateStagedRecordInput) UpdateStagedRecordInput {
	out := UpdateStagedRecordInput{
		AmountMinorUnits: base.AmountMinorUnits.Or(overlay.AmountMinorUnits),
		Description:      base.Description.Or(overlay.Description),
		Date:             base.Date.Or(overlay.Date),
		AccountID:        base.AccountID.Or(overlay.AccountID),
		CategoryID:       base.CategoryID.Or(overlay.CategoryID),
		ExchangeRate:     base.ExchangeRate.Or(overlay.ExchangeRate),
		Notes:            base.Notes.Or(overlay.Notes),
		ExpectedVersion:  base.ExpectedVersion,
	}
	if overlay.ExpectedVersion != nil {
		out.ExpectedVersion = overlay.ExpectedVersion
	}
	return out
}

// PromoteStagedRecordInput is the normalized promotion command. The Final*
// fields override the stored draft values inside the same atomic operation,
// so the UI can promote with last-second edits without a separate update.
type PromoteStagedRecordInput struct {
	RecordID              string           `json:"recordId"`
	AccountID             string           `json:"accountId"`
	CategoryID            string           `json:"categoryId"`
	FinalDescription      *string          `json:"finalDescription"`
	FinalDate             *string          `json:"finalDate"`
	FinalAmountMinorUnits *int64           `json:"finalAmountMinorUnits"`
	ExchangeRate          *decimal.Decimal `json:"exchangeRate"`
	ExpectedVersion       *int64           `json:"expectedVersion"`
}

// PromotionResult reports a successful promotion: the new ledger row, the
// processed staged record, and the version the authority assigned to it.
type PromotionResult struct {
	LedgerTransactionID string `json:"ledgerTransactionId"`
	StagedRecordID      string `json:"stagedRecordId"`
	NewVersion          int64  `json:"newVersion"`
}
