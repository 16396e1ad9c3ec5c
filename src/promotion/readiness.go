// backend/src/promotion/readiness.go
package promotion

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/centavo/backend/src/models"
)

// MissingField names a promotion precondition that does not hold yet. The
// values double as user-facing message keys.
type MissingField string

const (
	MissingAmount       MissingField = "amount"
	MissingDescription  MissingField = "description"
	MissingAccount      MissingField = "account"
	MissingCategory     MissingField = "category"
	MissingDate         MissingField = "date"
	MissingExchangeRate MissingField = "exchangeRate"
)

// Readiness is the computed promotability of a draft. "Ready to promote" is
// a strict subset of "worth persisting": a draft with a single field filled
// in can be saved but not promoted.
type Readiness struct {
	IsReady      bool           `json:"isReady"`
	CanSaveDraft bool           `json:"canSaveDraft"`
	Missing      []MissingField `json:"missing"`
}

// Evaluate computes readiness for draft. persisted is the currently stored
// record, nil for a brand-new scratchpad; CanSaveDraft is true when at least
// one field differs from it. accountCurrency is the currency of the draft's
// selected account ("" when no account is chosen); when it differs from
// referenceCurrency a positive exchange rate becomes a hard requirement —
// the multi-currency gatekeeper.
//
// Missing-field order is deterministic for user messaging: amount,
// description, account, category, date, exchangeRate.
func Evaluate(draft models.StagedRecord, persisted *models.StagedRecord, accountCurrency, referenceCurrency string) Readiness {
	var missing []MissingField

	if draft.AmountMinorUnits == nil {
		missing = append(missing, MissingAmount)
	}
	if draft.Description == nil || strings.TrimSpace(*draft.Description) == "" {
		missing = append(missing, MissingDescription)
	}
	if draft.AccountID == nil {
		missing = append(missing, MissingAccount)
	}
	if draft.CategoryID == nil {
		missing = append(missing, MissingCategory)
	}
	if draft.Date == nil {
		missing = append(missing, MissingDate)
	}
	if draft.AccountID != nil && accountCurrency != "" && accountCurrency != referenceCurrency {
		if draft.ExchangeRate == nil || !draft.ExchangeRate.IsPositive() {
			missing = append(missing, MissingExchangeRate)
		}
	}

	return Readiness{
		IsReady:      len(missing) == 0,
		CanSaveDraft: canSaveDraft(draft, persisted),
		Missing:      missing,
	}
}

func canSaveDraft(draft models.StagedRecord, persisted *models.StagedRecord) bool {
	if persisted == nil {
		return draft.AmountMinorUnits != nil ||
			draft.Description != nil ||
			draft.Date != nil ||
			draft.AccountID != nil ||
			draft.CategoryID != nil ||
			draft.ExchangeRate != nil ||
			draft.Notes != nil
	}
	return !int64PtrEqual(draft.AmountMinorUnits, persisted.AmountMinorUnits) ||
		!strPtrEqual(draft.Description, persisted.Description) ||
		!strPtrEqual(draft.Date, persisted.Date) ||
		!strPtrEqual(draft.AccountID, persisted.AccountID) ||
		!strPtrEqual(draft.CategoryID, persisted.CategoryID) ||
		!decimalPtrEqual(draft.ExchangeRate, persisted.ExchangeRate) ||
		!strPtrEqual(draft.Notes, persisted.Notes)
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
