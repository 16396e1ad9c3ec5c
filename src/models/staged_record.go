package models

import (
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// StagedStatus is the lifecycle state of an inbox item. Pending records are
// the user's backlog; processed and ignored are terminal.
type StagedStatus string

const (
	StagedStatusPending   StagedStatus = "pending"
	StagedStatusProcessed StagedStatus = "processed"
	StagedStatusIgnored   StagedStatus = "ignored"
)

// SyncStatus tracks the local copy's position relative to the remote
// authority.
type SyncStatus string

const (
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusConflict SyncStatus = "conflict"
)

// StagedRecord is an uncommitted, partially-filled draft of a transaction
// sitting in the user's inbox. Every payable field is individually nullable;
// amounts are integer minor units (cents), never floating point.
type StagedRecord struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	AmountMinorUnits *int64           `json:"amountMinorUnits"`
	CurrencyCode     *string          `json:"currencyCode"` // derived from the selected account, never stored independently
	Description      *string          `json:"description"`
	Date             *string          `json:"date"` // YYYY-MM-DD
	AccountID        *string          `json:"accountId"`
	CategoryID       *string          `json:"categoryId"`
	ExchangeRate     *decimal.Decimal `json:"exchangeRate"`
	Notes            *string          `json:"notes"`
	SourceText       *string          `json:"sourceText"` // raw capture context, immutable once set

	Status     StagedStatus `json:"status"`
	Version    int64        `json:"version"`
	SyncStatus SyncStatus   `json:"syncStatus"`
	DeletedAt  *time.Time   `json:"deletedAt"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// DisplayAmount formats the amount in its currency for user-facing messages,
// e.g. "€12.34". Empty when amount or currency is not yet known.
func (r *StagedRecord) DisplayAmount() string {
	if r.AmountMinorUnits == nil || r.CurrencyCode == nil {
		return ""
	}
	return money.New(*r.AmountMinorUnits, *r.CurrencyCode).Display()
}

// Account is reference data: the source of a staged record's currency.
type Account struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	CurrencyCode string `json:"currencyCode"`
	Color        string `json:"color"`
}

// Category is reference data for classifying promoted transactions.
type Category struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

// LedgerTransaction is the permanent entry created as the side effect of a
// successful promotion. It is owned by the ledger, not by the inbox; it
// appears here only because promotion returns its id.
type LedgerTransaction struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	AmountMinorUnits int64            `json:"amountMinorUnits"`
	AccountID        string           `json:"accountId"`
	CategoryID       string           `json:"categoryId"`
	Description      string           `json:"description"`
	Date             string           `json:"date"`
	ExchangeRate     *decimal.Decimal `json:"exchangeRate"`
	CreatedAt        time.Time        `json:"createdAt"`
}
