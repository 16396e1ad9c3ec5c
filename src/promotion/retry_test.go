package promotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/centavo/backend/src/logger"
	"github.com/username/centavo/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	m.Run()
}

// fakePromoter scripts promotion outcomes and records every call.
type fakePromoter struct {
	promoteErrs   []error // nil entry = success; exhausted list = success
	promoteCalls  int
	promotedWith  []int64
	fetchVersion  int64
	fetchErr      error
	fetchCalls    int
	promoteResult models.PromotionResult
}

func (f *fakePromoter) Promote(ctx context.Context, userID string, in models.PromoteStagedRecordInput) (models.PromotionResult, error) {
	f.promoteCalls++
	if in.ExpectedVersion != nil {
		f.promotedWith = append(f.promotedWith, *in.ExpectedVersion)
	}
	if f.promoteCalls <= len(f.promoteErrs) {
		if err := f.promoteErrs[f.promoteCalls-1]; err != nil {
			return models.PromotionResult{}, err
		}
	}
	return f.promoteResult, nil
}

func (f *fakePromoter) GetByID(ctx context.Context, userID, id string) (models.StagedRecord, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return models.StagedRecord{}, f.fetchErr
	}
	return models.StagedRecord{ID: id, UserID: userID, Version: f.fetchVersion}, nil
}

func noSleep() Option { return withSleep(func(time.Duration) {}) }

func promoteInput(version int64) models.PromoteStagedRecordInput {
	return models.PromoteStagedRecordInput{
		RecordID:        "rec-1",
		AccountID:       "A1",
		CategoryID:      "C1",
		ExpectedVersion: &version,
	}
}

func TestRetryTerminationOnPermanentConflict(t *testing.T) {
	conflict := &models.VersionConflictError{Expected: 1, Found: 2}
	fake := &fakePromoter{
		promoteErrs:  []error{conflict, conflict, conflict, conflict, conflict},
		fetchVersion: 2,
	}
	runner := NewRunner(fake, noSleep())

	_, err := runner.Run(context.Background(), "u1", promoteInput(1))
	require.Error(t, err)

	got, ok := models.AsVersionConflict(err)
	require.True(t, ok)
	assert.EqualValues(t, 2, got.Found)

	// 1 initial attempt + MaxRetries retries, and one re-fetch per retry.
	assert.Equal(t, 1+DefaultMaxRetries, fake.promoteCalls)
	assert.Equal(t, DefaultMaxRetries, fake.fetchCalls)
}

func TestRetrySucceedsWithRefetchedVersion(t *testing.T) {
	fake := &fakePromoter{
		promoteErrs:   []error{&models.VersionConflictError{Expected: 3, Found: 7}},
		fetchVersion:  7,
		promoteResult: models.PromotionResult{LedgerTransactionID: "tx-1", StagedRecordID: "rec-1", NewVersion: 8},
	}
	runner := NewRunner(fake, noSleep())

	result, err := runner.Run(context.Background(), "u1", promoteInput(3))
	require.NoError(t, err)
	assert.Equal(t, "tx-1", result.LedgerTransactionID)

	assert.Equal(t, 2, fake.promoteCalls)
	assert.Equal(t, 1, fake.fetchCalls)
	// The second attempt used the version the re-fetch observed.
	assert.Equal(t, []int64{3, 7}, fake.promotedWith)
}

func TestRetryFetchFailureSurfacesOriginalConflict(t *testing.T) {
	conflict := &models.VersionConflictError{Expected: 1, Found: 4}
	fake := &fakePromoter{
		promoteErrs: []error{conflict},
		fetchErr:    models.ErrRepository,
	}
	runner := NewRunner(fake, noSleep())

	_, err := runner.Run(context.Background(), "u1", promoteInput(1))
	require.Error(t, err)

	// The fetch failure must not mask the conflict.
	got, ok := models.AsVersionConflict(err)
	require.True(t, ok)
	assert.EqualValues(t, 4, got.Found)
	assert.False(t, errors.Is(err, models.ErrRepository))
	assert.Equal(t, 1, fake.promoteCalls)
}

func TestPullBeforePromoteOnUnknownVersion(t *testing.T) {
	fake := &fakePromoter{
		fetchVersion:  5,
		promoteResult: models.PromotionResult{LedgerTransactionID: "tx-1", StagedRecordID: "rec-1", NewVersion: 6},
	}
	runner := NewRunner(fake, noSleep())

	in := models.PromoteStagedRecordInput{RecordID: "rec-1", AccountID: "A1", CategoryID: "C1"}
	_, err := runner.Run(context.Background(), "u1", in)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.fetchCalls)
	assert.Equal(t, []int64{5}, fake.promotedWith)
}

func TestPullBeforePromoteOnSuspiciousVersion(t *testing.T) {
	fake := &fakePromoter{
		fetchVersion:  9,
		promoteResult: models.PromotionResult{LedgerTransactionID: "tx-1", StagedRecordID: "rec-1", NewVersion: 10},
	}
	runner := NewRunner(fake, noSleep())

	_, err := runner.Run(context.Background(), "u1", promoteInput(0))
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, fake.promotedWith)
}

func TestNonConflictErrorsAreTerminal(t *testing.T) {
	fake := &fakePromoter{
		promoteErrs: []error{models.ErrPromotionFailed},
	}
	runner := NewRunner(fake, noSleep())

	_, err := runner.Run(context.Background(), "u1", promoteInput(1))
	require.ErrorIs(t, err, models.ErrPromotionFailed)
	assert.Equal(t, 1, fake.promoteCalls)
	assert.Zero(t, fake.fetchCalls)
}

func TestPullBeforePromoteFailureAborts(t *testing.T) {
	fake := &fakePromoter{fetchErr: models.ErrNotFound}
	runner := NewRunner(fake, noSleep())

	in := models.PromoteStagedRecordInput{RecordID: "rec-1", AccountID: "A1", CategoryID: "C1"}
	_, err := runner.Run(context.Background(), "u1", in)
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.Zero(t, fake.promoteCalls)
}
