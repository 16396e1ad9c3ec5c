// backend/src/services/staging_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/username/centavo/backend/src/models"
	"github.com/username/centavo/backend/src/promotion"
	"github.com/username/centavo/backend/src/refdata"
	"github.com/username/centavo/backend/src/repository"
	"github.com/username/centavo/backend/src/security/validation"
)

// HybridRepository is the repository surface the service needs: the staging
// contract plus promotion (the hybrid router implements both).
type HybridRepository interface {
	repository.StagingRepository
}

// AccountSource is the slice of reference data readiness needs.
type AccountSource interface {
	AccountByID(ctx context.Context, userID, id string) (models.Account, error)
}

type stagingService struct {
	repo              HybridRepository
	identity          IdentityProvider
	reporter          ErrorReporter
	accounts          AccountSource
	runner            *promotion.Runner
	referenceCurrency string
}

// NewStagingService is the single composition point for the staging
// subsystem; the dependencies arrive by construction, never through a
// package-level singleton.
func NewStagingService(
	repo HybridRepository,
	identity IdentityProvider,
	reporter ErrorReporter,
	accounts AccountSource,
	runner *promotion.Runner,
	referenceCurrency string,
) StagingService {
	return &stagingService{
		repo:              repo,
		identity:          identity,
		reporter:          reporter,
		accounts:          accounts,
		runner:            runner,
		referenceCurrency: referenceCurrency,
	}
}

// observe forwards unexpected failures to the reporter. Expected outcomes —
// not found, validation, terminal-state and version errors — are part of the
// protocol, not incidents.
func (s *stagingService) observe(err error, operation string) {
	if err == nil {
		return
	}
	if errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrAlreadyProcessed) ||
		errors.Is(err, models.ErrPromotionFailed) {
		return
	}
	if _, ok := models.AsVersionConflict(err); ok {
		return
	}
	s.reporter.Report(err, "staging", operation)
}

func (s *stagingService) ListPending(ctx context.Context, offset, limit int) (repository.Page, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return repository.Page{}, err
	}
	page, err := s.repo.GetPendingPage(ctx, userID, offset, limit)
	s.observe(err, "listPending")
	return page, err
}

func (s *stagingService) Get(ctx context.Context, id string) (models.StagedRecord, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return models.StagedRecord{}, err
	}
	rec, err := s.repo.GetByID(ctx, userID, id)
	s.observe(err, "get")
	return rec, err
}

func (s *stagingService) Create(ctx context.Context, in models.CreateStagedRecordInput) (models.StagedRecord, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return models.StagedRecord{}, err
	}
	if err := sanitizeCreate(&in); err != nil {
		return models.StagedRecord{}, err
	}
	rec, err := s.repo.Create(ctx, userID, in)
	s.observe(err, "create")
	return rec, err
}

func (s *stagingService) Update(ctx context.Context, id string, in models.UpdateStagedRecordInput) (models.StagedRecord, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return models.StagedRecord{}, err
	}
	cleaned, err := sanitizeUpdate(in)
	if err != nil {
		return models.StagedRecord{}, err
	}
	rec, err := s.repo.Update(ctx, userID, id, cleaned)
	s.observe(err, "update")
	return rec, err
}

func (s *stagingService) CreateBatch(ctx context.Context, ins []models.CreateStagedRecordInput) ([]models.StagedRecord, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ins {
		if err := sanitizeCreate(&ins[i]); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	recs, err := s.repo.CreateBatch(ctx, userID, ins)
	s.observe(err, "createBatch")
	return recs, err
}

func (s *stagingService) UpdateBatch(ctx context.Context, items []repository.BatchUpdateItem) ([]models.StagedRecord, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		cleaned, serr := sanitizeUpdate(items[i].Input)
		if serr != nil {
			return nil, fmt.Errorf("item %d: %w", i, serr)
		}
		items[i].Input = cleaned
	}
	recs, err := s.repo.UpdateBatch(ctx, userID, items)
	s.observe(err, "updateBatch")
	return recs, err
}

func (s *stagingService) Promote(ctx context.Context, in models.PromoteStagedRecordInput) (models.PromotionResult, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return models.PromotionResult{}, err
	}
	if in.FinalDescription != nil {
		v := validation.SanitizeFreeText(*in.FinalDescription)
		in.FinalDescription = &v
	}
	if in.FinalDate != nil {
		if err := validation.ValidateDate(*in.FinalDate, "finalDate"); err != nil {
			return models.PromotionResult{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
	}
	result, err := s.runner.Run(ctx, userID, in)
	s.observe(err, "promote")
	return result, err
}

func (s *stagingService) Dismiss(ctx context.Context, id string, expectedVersion *int64) error {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	err = s.repo.Dismiss(ctx, userID, id, expectedVersion)
	s.observe(err, "dismiss")
	return err
}

func (s *stagingService) Readiness(ctx context.Context, id string) (promotion.Readiness, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return promotion.Readiness{}, err
	}
	rec, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		s.observe(err, "readiness")
		return promotion.Readiness{}, err
	}

	accountCurrency := ""
	if rec.AccountID != nil {
		acc, accErr := s.accounts.AccountByID(ctx, userID, *rec.AccountID)
		if accErr == nil {
			accountCurrency = acc.CurrencyCode
		} else if !errors.Is(accErr, refdata.ErrAccountNotFound) {
			s.observe(accErr, "readiness")
			return promotion.Readiness{}, accErr
		}
	}
	return promotion.Evaluate(rec, &rec, accountCurrency, s.referenceCurrency), nil
}

func sanitizeCreate(in *models.CreateStagedRecordInput) error {
	if in.Description != nil {
		v := validation.SanitizeFreeText(*in.Description)
		if err := validation.ValidateStringMaxLength(v, validation.MaxDescriptionLength, "description"); err != nil {
			return fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		in.Description = &v
	}
	if in.Notes != nil {
		v := validation.SanitizeFreeText(*in.Notes)
		if err := validation.ValidateStringMaxLength(v, validation.MaxNotesLength, "notes"); err != nil {
			return fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		in.Notes = &v
	}
	if in.SourceText != nil {
		v := validation.SanitizeFreeText(*in.SourceText)
		if err := validation.ValidateStringMaxLength(v, validation.MaxSourceTextLength, "sourceText"); err != nil {
			return fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		in.SourceText = &v
	}
	if in.Date != nil {
		if err := validation.ValidateDate(*in.Date, "date"); err != nil {
			return fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
	}
	return nil
}

func sanitizeUpdate(in models.UpdateStagedRecordInput) (models.UpdateStagedRecordInput, error) {
	if v, ok := in.Description.Value(); ok {
		cleaned := validation.SanitizeFreeText(v)
		if err := validation.ValidateStringMaxLength(cleaned, validation.MaxDescriptionLength, "description"); err != nil {
			return in, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		in.Description = models.SetField(cleaned)
	}
	if v, ok := in.Notes.Value(); ok {
		cleaned := validation.SanitizeFreeText(v)
		if err := validation.ValidateStringMaxLength(cleaned, validation.MaxNotesLength, "notes"); err != nil {
			return in, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		in.Notes = models.SetField(cleaned)
	}
	if v, ok := in.Date.Value(); ok {
		if err := validation.ValidateDate(v, "date"); err != nil {
			return in, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
	}
	return in, nil
}
