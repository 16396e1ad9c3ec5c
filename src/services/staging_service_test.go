package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/centavo/backend/src/models"
	"github.com/username/centavo/backend/src/promotion"
	"github.com/username/centavo/backend/src/refdata"
	"github.com/username/centavo/backend/src/repository"
	"github.com/username/centavo/backend/src/security"
)

type fakeIdentity struct {
	userID string
	err    error
}

func (f fakeIdentity) CurrentUserID(ctx context.Context) (string, error) {
	return f.userID, f.err
}

type reportedError struct {
	err       error
	subsystem string
	operation string
}

type fakeReporter struct {
	reports []reportedError
}

func (f *fakeReporter) Report(err error, subsystem, operation string) {
	f.reports = append(f.reports, reportedError{err, subsystem, operation})
}

type fakeAccounts struct {
	currency string
	err      error
}

func (f fakeAccounts) AccountByID(ctx context.Context, userID, id string) (models.Account, error) {
	if f.err != nil {
		return models.Account{}, f.err
	}
	return models.Account{ID: id, UserID: userID, CurrencyCode: f.currency}, nil
}

// fakeRepo records arguments and plays back scripted results.
type fakeRepo struct {
	lastUserID    string
	lastCreate    models.CreateStagedRecordInput
	lastUpdate    models.UpdateStagedRecordInput
	record        models.StagedRecord
	getErr        error
	updateErr     error
	dismissErr    error
	promoteErr    error
	promoteResult models.PromotionResult
	promoteCalls  int
}

func (f *fakeRepo) GetPendingPage(ctx context.Context, userID string, offset, limit int) (repository.Page, error) {
	f.lastUserID = userID
	return repository.Page{Records: []models.StagedRecord{f.record}, TotalCount: 1}, f.getErr
}

func (f *fakeRepo) GetByID(ctx context.Context, userID, id string) (models.StagedRecord, error) {
	f.lastUserID = userID
	return f.record, f.getErr
}

func (f *fakeRepo) Create(ctx context.Context, userID string, in models.CreateStagedRecordInput) (models.StagedRecord, error) {
	f.lastUserID = userID
	f.lastCreate = in
	return f.record, nil
}

func (f *fakeRepo) Update(ctx context.Context, userID, id string, in models.UpdateStagedRecordInput) (models.StagedRecord, error) {
	f.lastUserID = userID
	f.lastUpdate = in
	return f.record, f.updateErr
}

func (f *fakeRepo) CreateBatch(ctx context.Context, userID string, ins []models.CreateStagedRecordInput) ([]models.StagedRecord, error) {
	f.lastUserID = userID
	if len(ins) > 0 {
		f.lastCreate = ins[0]
	}
	return []models.StagedRecord{f.record}, nil
}

func (f *fakeRepo) UpdateBatch(ctx context.Context, userID string, items []repository.BatchUpdateItem) ([]models.StagedRecord, error) {
	f.lastUserID = userID
	if len(items) > 0 {
		f.lastUpdate = items[0].Input
	}
	return []models.StagedRecord{f.record}, nil
}

func (f *fakeRepo) Promote(ctx context.Context, userID string, in models.PromoteStagedRecordInput) (models.PromotionResult, error) {
	f.lastUserID = userID
	f.promoteCalls++
	if f.promoteErr != nil {
		return models.PromotionResult{}, f.promoteErr
	}
	return f.promoteResult, nil
}

func (f *fakeRepo) Dismiss(ctx context.Context, userID, id string, expectedVersion *int64) error {
	f.lastUserID = userID
	return f.dismissErr
}

func newTestService(repo *fakeRepo, reporter *fakeReporter, accounts AccountSource) StagingService {
	runner := promotion.NewRunner(repo, promotion.WithJitter(0))
	return NewStagingService(repo, fakeIdentity{userID: "user-1"}, reporter, accounts, runner, "EUR")
}

func strPtr(v string) *string { return &v }
func i64Ptr(v int64) *int64   { return &v }

func TestIdentityFailureShortCircuits(t *testing.T) {
	repo := &fakeRepo{}
	runner := promotion.NewRunner(repo, promotion.WithJitter(0))
	svc := NewStagingService(repo, fakeIdentity{err: security.ErrNoIdentity}, &fakeReporter{}, fakeAccounts{}, runner, "EUR")

	_, err := svc.ListPending(context.Background(), 0, 10)
	assert.ErrorIs(t, err, security.ErrNoIdentity)
	_, err = svc.Create(context.Background(), models.CreateStagedRecordInput{})
	assert.ErrorIs(t, err, security.ErrNoIdentity)
	assert.Empty(t, repo.lastUserID)
}

func TestIdentityResolvedOncePerCall(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &fakeReporter{}, fakeAccounts{})

	_, err := svc.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", repo.lastUserID)
}

func TestCreateSanitizesFreeText(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &fakeReporter{}, fakeAccounts{})

	_, err := svc.Create(context.Background(), models.CreateStagedRecordInput{
		Description: strPtr("  <script>alert(1)</script>Lunch  "),
		Notes:       strPtr("<b>bold</b> note"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lunch", *repo.lastCreate.Description)
	assert.Equal(t, "bold note", *repo.lastCreate.Notes)
}

func TestCreateRejectsBadDate(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &fakeReporter{}, fakeAccounts{})

	_, err := svc.Create(context.Background(), models.CreateStagedRecordInput{
		Date: strPtr("01/03/2026"),
	})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, repo.lastUserID)
}

func TestUpdateSanitizesSetFields(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &fakeReporter{}, fakeAccounts{})

	_, err := svc.Update(context.Background(), "r1", models.UpdateStagedRecordInput{
		Description: models.SetField("  <i>Rent</i> "),
	})
	require.NoError(t, err)
	v, ok := repo.lastUpdate.Description.Value()
	require.True(t, ok)
	assert.Equal(t, "Rent", v)
}

func TestObserveSkipsExpectedErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"not found", models.ErrNotFound},
		{"already processed", models.ErrAlreadyProcessed},
		{"version conflict", &models.VersionConflictError{Expected: 1, Found: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{updateErr: tc.err}
			reporter := &fakeReporter{}
			svc := newTestService(repo, reporter, fakeAccounts{})

			_, err := svc.Update(context.Background(), "r1", models.UpdateStagedRecordInput{
				Description: models.SetField("x"),
			})
			require.Error(t, err)
			assert.Empty(t, reporter.reports)
		})
	}
}

func TestObserveReportsUnexpectedErrors(t *testing.T) {
	repo := &fakeRepo{updateErr: errors.New("disk on fire")}
	reporter := &fakeReporter{}
	svc := newTestService(repo, reporter, fakeAccounts{})

	_, err := svc.Update(context.Background(), "r1", models.UpdateStagedRecordInput{
		Description: models.SetField("x"),
	})
	require.Error(t, err)
	require.Len(t, reporter.reports, 1)
	assert.Equal(t, "staging", reporter.reports[0].subsystem)
	assert.Equal(t, "update", reporter.reports[0].operation)
}

func TestPromoteDelegatesThroughRetryRunner(t *testing.T) {
	repo := &fakeRepo{
		promoteResult: models.PromotionResult{LedgerTransactionID: "tx-1", StagedRecordID: "r1", NewVersion: 2},
	}
	svc := newTestService(repo, &fakeReporter{}, fakeAccounts{})

	result, err := svc.Promote(context.Background(), models.PromoteStagedRecordInput{
		RecordID:        "r1",
		AccountID:       "a1",
		CategoryID:      "c1",
		ExpectedVersion: i64Ptr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", result.LedgerTransactionID)
	assert.Equal(t, 1, repo.promoteCalls)
	assert.Equal(t, "user-1", repo.lastUserID)
}

func TestPromoteRejectsBadFinalDate(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &fakeReporter{}, fakeAccounts{})

	_, err := svc.Promote(context.Background(), models.PromoteStagedRecordInput{
		RecordID:  "r1",
		FinalDate: strPtr("not-a-date"),
	})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Zero(t, repo.promoteCalls)
}

func TestReadinessUsesAccountCurrency(t *testing.T) {
	amount := int64(1000)
	desc := "Hotel"
	date := "2026-03-01"
	account := "acc-usd"
	category := "cat-travel"
	repo := &fakeRepo{record: models.StagedRecord{
		ID:               "r1",
		UserID:           "user-1",
		AmountMinorUnits: &amount,
		Description:      &desc,
		Date:             &date,
		AccountID:        &account,
		CategoryID:       &category,
		Version:          1,
	}}
	svc := newTestService(repo, &fakeReporter{}, fakeAccounts{currency: "USD"})

	readiness, err := svc.Readiness(context.Background(), "r1")
	require.NoError(t, err)
	assert.False(t, readiness.IsReady)
	assert.Equal(t, []promotion.MissingField{promotion.MissingExchangeRate}, readiness.Missing)
}

func TestReadinessToleratesUnknownAccount(t *testing.T) {
	amount := int64(1000)
	desc := "Hotel"
	date := "2026-03-01"
	account := "acc-gone"
	category := "cat-travel"
	repo := &fakeRepo{record: models.StagedRecord{
		ID:               "r1",
		UserID:           "user-1",
		AmountMinorUnits: &amount,
		Description:      &desc,
		Date:             &date,
		AccountID:        &account,
		CategoryID:       &category,
		Version:          1,
	}}
	svc := newTestService(repo, &fakeReporter{}, fakeAccounts{err: refdata.ErrAccountNotFound})

	// An account the reference cache cannot resolve does not block the
	// readiness read; the currency gate simply cannot trigger.
	readiness, err := svc.Readiness(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, readiness.IsReady)
	assert.Empty(t, readiness.Missing)
}
