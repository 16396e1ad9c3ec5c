// backend/src/refdata/refdata.go
package refdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/centavo/backend/src/models"
)

const (
	DefaultCacheExpiration = 5 * time.Minute
	CacheCleanupInterval   = 10 * time.Minute
)

// ErrAccountNotFound and ErrCategoryNotFound distinguish bad references from
// transport failures.
var (
	ErrAccountNotFound  = fmt.Errorf("account %w", models.ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", models.ErrNotFound)
)

// Source serves account and category reference data from the local store
// with a TTL cache in front. The readiness calculator hits AccountByID on
// every keystroke-driven recompute, so lookups have to be cheap.
type Source struct {
	db    *sql.DB
	cache *cache.Cache
}

func NewSource(db *sql.DB, ttl time.Duration) *Source {
	if ttl <= 0 {
		ttl = DefaultCacheExpiration
	}
	return &Source{
		db:    db,
		cache: cache.New(ttl, CacheCleanupInterval),
	}
}

func accountKey(userID, id string) string  { return "account:" + userID + ":" + id }
func categoryKey(userID, id string) string { return "category:" + userID + ":" + id }

func (s *Source) AccountByID(ctx context.Context, userID, id string) (models.Account, error) {
	key := accountKey(userID, id)
	if cached, found := s.cache.Get(key); found {
		return cached.(models.Account), nil
	}

	var acc models.Account
	var color sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, currency_code, color
		FROM accounts WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&acc.ID, &acc.UserID, &acc.Name, &acc.CurrencyCode, &color)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("%w: query account: %v", models.ErrRepository, err)
	}
	acc.Color = color.String

	s.cache.Set(key, acc, cache.DefaultExpiration)
	return acc, nil
}

func (s *Source) CategoryByID(ctx context.Context, userID, id string) (models.Category, error) {
	key := categoryKey(userID, id)
	if cached, found := s.cache.Get(key); found {
		return cached.(models.Category), nil
	}

	var cat models.Category
	var color sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, color
		FROM categories WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&cat.ID, &cat.UserID, &cat.Name, &color)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Category{}, ErrCategoryNotFound
	}
	if err != nil {
		return models.Category{}, fmt.Errorf("%w: query category: %v", models.ErrRepository, err)
	}
	cat.Color = color.String

	s.cache.Set(key, cat, cache.DefaultExpiration)
	return cat, nil
}

// InvalidateUser drops every cached entry belonging to userID, e.g. after
// the accounts screen edits reference data.
func (s *Source) InvalidateUser(userID string) {
	marker := ":" + userID + ":"
	for key := range s.cache.Items() {
		if strings.Contains(key, marker) {
			s.cache.Delete(key)
		}
	}
}
