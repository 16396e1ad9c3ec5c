package promotion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/username/centavo/backend/src/models"
)

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

func fullRecord() models.StagedRecord {
	rate := decimal.RequireFromString("1.0843")
	return models.StagedRecord{
		ID:               "r1",
		AmountMinorUnits: i64Ptr(2500),
		Description:      strPtr("Groceries"),
		Date:             strPtr("2026-02-10"),
		AccountID:        strPtr("A1"),
		CategoryID:       strPtr("C1"),
		ExchangeRate:     &rate,
	}
}

func TestReadinessAllPreconditionsHold(t *testing.T) {
	rec := fullRecord()
	got := Evaluate(rec, nil, "EUR", "EUR")

	assert.True(t, got.IsReady)
	assert.True(t, got.CanSaveDraft)
	assert.Empty(t, got.Missing)
}

func TestReadinessMissingFieldsDeterministicOrder(t *testing.T) {
	rec := models.StagedRecord{ID: "r1"}
	got := Evaluate(rec, nil, "", "EUR")

	assert.False(t, got.IsReady)
	assert.False(t, got.CanSaveDraft)
	assert.Equal(t, []MissingField{
		MissingAmount, MissingDescription, MissingAccount, MissingCategory, MissingDate,
	}, got.Missing)
}

func TestReadinessPartialDraft(t *testing.T) {
	// {amount:null, account:"A1", category:null} with description and date
	// present: savable but blocked on amount and category.
	rec := models.StagedRecord{
		ID:          "r1",
		Description: strPtr("Dinner"),
		Date:        strPtr("2026-02-10"),
		AccountID:   strPtr("A1"),
	}
	got := Evaluate(rec, nil, "EUR", "EUR")

	assert.False(t, got.IsReady)
	assert.True(t, got.CanSaveDraft)
	assert.Equal(t, []MissingField{MissingAmount, MissingCategory}, got.Missing)

	// Filling in amount and category on a same-currency account makes it
	// ready.
	rec.AmountMinorUnits = i64Ptr(4200)
	rec.CategoryID = strPtr("C1")
	got = Evaluate(rec, nil, "EUR", "EUR")
	assert.True(t, got.IsReady)
	assert.Empty(t, got.Missing)
}

func TestReadinessForeignCurrencyRequiresExchangeRate(t *testing.T) {
	rec := fullRecord()
	rec.ExchangeRate = nil
	rec.AccountID = strPtr("A2")

	got := Evaluate(rec, nil, "USD", "EUR")
	assert.False(t, got.IsReady)
	assert.Equal(t, []MissingField{MissingExchangeRate}, got.Missing)

	zero := decimal.Zero
	rec.ExchangeRate = &zero
	got = Evaluate(rec, nil, "USD", "EUR")
	assert.False(t, got.IsReady)
	assert.Equal(t, []MissingField{MissingExchangeRate}, got.Missing)

	rate := decimal.RequireFromString("1.0843")
	rec.ExchangeRate = &rate
	got = Evaluate(rec, nil, "USD", "EUR")
	assert.True(t, got.IsReady)
}

func TestReadinessSameCurrencyIgnoresExchangeRate(t *testing.T) {
	rec := fullRecord()
	rec.ExchangeRate = nil
	got := Evaluate(rec, nil, "EUR", "EUR")
	assert.True(t, got.IsReady)
}

func TestReadinessEmptyDescriptionCountsAsMissing(t *testing.T) {
	rec := fullRecord()
	rec.Description = strPtr("   ")
	got := Evaluate(rec, nil, "EUR", "EUR")
	assert.False(t, got.IsReady)
	assert.Equal(t, []MissingField{MissingDescription}, got.Missing)
}

func TestCanSaveDraftComparesAgainstPersisted(t *testing.T) {
	persisted := fullRecord()

	unchanged := persisted
	got := Evaluate(unchanged, &persisted, "EUR", "EUR")
	assert.False(t, got.CanSaveDraft)

	edited := persisted
	edited.Description = strPtr("Groceries (edited)")
	got = Evaluate(edited, &persisted, "EUR", "EUR")
	assert.True(t, got.CanSaveDraft)

	cleared := persisted
	cleared.CategoryID = nil
	got = Evaluate(cleared, &persisted, "EUR", "EUR")
	assert.True(t, got.CanSaveDraft)
}
