package distribution

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"govhub/internal/ledger"
	"govhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeModelStore struct {
	model       *models.DistributionModel
	records     []models.DistributionRecord
	failClaims  bool
	claimCalls  int
	initialSets int
}

func (s *fakeModelStore) GetDistributionModel(_ context.Context, id int64) (*models.DistributionModel, error) {
	if s.model == nil || s.model.ID != id {
		return nil, errors.New("no rows")
	}
	return s.model, nil
}

func (s *fakeModelStore) MarkInitialExecuted(_ context.Context, _ int64, at time.Time) error {
	if s.model.InitialExecutedAt == nil {
		s.model.InitialExecutedAt = &at
		s.initialSets++
	}
	return nil
}

func (s *fakeModelStore) SetLastEmissionTime(_ context.Context, _ int64, at time.Time) error {
	s.model.LastEmissionTime = &at
	return nil
}

func (s *fakeModelStore) MarkUnlockExecuted(_ context.Context, entryID int64, at time.Time) (bool, error) {
	s.claimCalls++
	if s.failClaims {
		return false, nil
	}
	for i := range s.model.UnlockSchedule {
		entry := &s.model.UnlockSchedule[i]
		if entry.ID == entryID && !entry.Executed {
			entry.Executed = true
			entry.ExecutedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeModelStore) AddDistributionRecord(_ context.Context, record *models.DistributionRecord) error {
	s.records = append(s.records, *record)
	return nil
}

func (s *fakeModelStore) recordsOfType(distType models.DistributionType) []models.DistributionRecord {
	var out []models.DistributionRecord
	for _, record := range s.records {
		if record.DistributionType == distType {
			out = append(out, record)
		}
	}
	return out
}

type sentTransfer struct {
	canisterID string
	recipient  string
	amount     string
}

type fakeTokens struct {
	sent    []sentTransfer
	failFor map[string]error
}

func (f *fakeTokens) ICRC1TransferTo(_ context.Context, canisterID string, _ *[32]byte, to ledger.Account, amount *big.Int) (uint64, error) {
	recipient := to.Owner.String()
	if err := f.failFor[recipient]; err != nil {
		return 0, err
	}
	f.sent = append(f.sent, sentTransfer{canisterID: canisterID, recipient: recipient, amount: amount.String()})
	return 7, nil
}

var (
	alice = ledger.Principal([]byte{0x0A}).String()
	bob   = ledger.Principal([]byte{0x0B}).String()
)

func newScheduler(store *fakeModelStore, tokens *fakeTokens, now time.Time) *Scheduler {
	return &Scheduler{
		Store:           store,
		Tokens:          tokens,
		EmissionSpacing: time.Minute,
		Log:             zap.NewNop(),
		Now:             func() time.Time { return now },
	}
}

func baseModel() *models.DistributionModel {
	return &models.DistributionModel{
		ID:                  1,
		TokenCanisterID:     "s57im-oyaaa-aaaas-akwma-cai",
		InitialDistribution: map[string]string{},
	}
}

func TestInitialDistributionRunsOnce(t *testing.T) {
	now := time.Now().UTC()
	model := baseModel()
	model.InitialDistribution = map[string]string{alice: "100", bob: "250"}
	store := &fakeModelStore{model: model}
	tokens := &fakeTokens{}
	sched := newScheduler(store, tokens, now)

	require.NoError(t, sched.RunModel(context.Background(), 1))
	assert.Len(t, tokens.sent, 2)
	assert.Equal(t, 1, store.initialSets)
	require.NotNil(t, model.InitialExecutedAt)

	records := store.recordsOfType(models.DistInitial)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, "success: height 7", record.TxResult)
		assert.Equal(t, records[0].BatchID, record.BatchID)
	}

	require.NoError(t, sched.RunModel(context.Background(), 1))
	assert.Len(t, tokens.sent, 2)
	assert.Equal(t, 1, store.initialSets)
}

func TestEmissionRespectsSpacing(t *testing.T) {
	start := time.Now().UTC()
	model := baseModel()
	model.InitialDistribution = map[string]string{alice: "100"}
	model.InitialExecutedAt = &start
	rate := "50"
	model.EmissionRate = &rate
	store := &fakeModelStore{model: model}
	tokens := &fakeTokens{}

	// First tick: no prior emission, so one fires immediately.
	require.NoError(t, newScheduler(store, tokens, start).RunModel(context.Background(), 1))
	require.Len(t, tokens.sent, 1)
	assert.Equal(t, "50", tokens.sent[0].amount)
	require.NotNil(t, model.LastEmissionTime)

	// Half the spacing later: too soon.
	require.NoError(t, newScheduler(store, tokens, start.Add(30*time.Second)).RunModel(context.Background(), 1))
	assert.Len(t, tokens.sent, 1)

	// Exactly one spacing later: due again.
	require.NoError(t, newScheduler(store, tokens, start.Add(90*time.Second)).RunModel(context.Background(), 1))
	assert.Len(t, tokens.sent, 2)
	assert.Equal(t, start.Add(90*time.Second), *model.LastEmissionTime)
}

func TestEmissionSkipsMalformedRate(t *testing.T) {
	now := time.Now().UTC()
	model := baseModel()
	model.InitialDistribution = map[string]string{alice: "100"}
	model.InitialExecutedAt = &now
	rate := "not-a-number"
	model.EmissionRate = &rate
	store := &fakeModelStore{model: model}
	tokens := &fakeTokens{}

	require.NoError(t, newScheduler(store, tokens, now).RunModel(context.Background(), 1))
	assert.Empty(t, tokens.sent)
	assert.Nil(t, model.LastEmissionTime)
}

func TestUnlockEntriesFireExactlyOnce(t *testing.T) {
	now := time.Now().UTC()
	executedAt := now.Add(-time.Hour)
	model := baseModel()
	model.InitialExecutedAt = &now
	model.UnlockSchedule = []models.UnlockEntry{
		{ID: 1, ModelID: 1, UnlockTime: now.Add(-time.Minute), Addr: alice, Amount: "500"},
		{ID: 2, ModelID: 1, UnlockTime: now.Add(-time.Hour), Addr: bob, Amount: "900", Executed: true, ExecutedAt: &executedAt},
		{ID: 3, ModelID: 1, UnlockTime: now.Add(time.Hour), Addr: bob, Amount: "900"},
	}
	store := &fakeModelStore{model: model}
	tokens := &fakeTokens{}
	sched := newScheduler(store, tokens, now)

	require.NoError(t, sched.RunModel(context.Background(), 1))
	require.Len(t, tokens.sent, 1)
	assert.Equal(t, alice, tokens.sent[0].recipient)
	assert.Equal(t, "500", tokens.sent[0].amount)
	assert.True(t, model.UnlockSchedule[0].Executed)

	records := store.recordsOfType(models.DistScheduled)
	require.Len(t, records, 1)
	assert.Equal(t, alice, records[0].Recipient)

	// Second tick: entry 1 is executed, entry 3 still in the future.
	require.NoError(t, sched.RunModel(context.Background(), 1))
	assert.Len(t, tokens.sent, 1)
}

func TestUnlockSkipsLostClaims(t *testing.T) {
	now := time.Now().UTC()
	model := baseModel()
	model.InitialExecutedAt = &now
	model.UnlockSchedule = []models.UnlockEntry{
		{ID: 1, ModelID: 1, UnlockTime: now.Add(-time.Minute), Addr: alice, Amount: "500"},
	}
	store := &fakeModelStore{model: model, failClaims: true}
	tokens := &fakeTokens{}

	require.NoError(t, newScheduler(store, tokens, now).RunModel(context.Background(), 1))
	assert.Equal(t, 1, store.claimCalls)
	assert.Empty(t, tokens.sent)
	assert.Empty(t, store.records)
}

func TestTransferFailureIsRecordedAndIsolated(t *testing.T) {
	now := time.Now().UTC()
	model := baseModel()
	model.InitialDistribution = map[string]string{alice: "100", bob: "250"}
	store := &fakeModelStore{model: model}
	tokens := &fakeTokens{failFor: map[string]error{alice: errors.New("ledger down")}}

	require.NoError(t, newScheduler(store, tokens, now).RunModel(context.Background(), 1))

	// Bob's transfer still goes through and the round completes.
	require.Len(t, tokens.sent, 1)
	assert.Equal(t, bob, tokens.sent[0].recipient)
	require.NotNil(t, model.InitialExecutedAt)

	records := store.recordsOfType(models.DistInitial)
	require.Len(t, records, 2)
	results := map[string]string{}
	for _, record := range records {
		results[record.Recipient] = record.TxResult
	}
	assert.Equal(t, "error: ledger down", results[alice])
	assert.Equal(t, "success: height 7", results[bob])
}

func TestMalformedAllocationIsRecordedWithoutTransfer(t *testing.T) {
	now := time.Now().UTC()
	model := baseModel()
	model.InitialDistribution = map[string]string{alice: "-5"}
	store := &fakeModelStore{model: model}
	tokens := &fakeTokens{}

	require.NoError(t, newScheduler(store, tokens, now).RunModel(context.Background(), 1))
	assert.Empty(t, tokens.sent)

	records := store.recordsOfType(models.DistInitial)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].TxResult, "error:")
}

func TestInvalidRecipientIsRecorded(t *testing.T) {
	now := time.Now().UTC()
	model := baseModel()
	model.InitialDistribution = map[string]string{"not-a-principal": "100"}
	store := &fakeModelStore{model: model}
	tokens := &fakeTokens{}

	require.NoError(t, newScheduler(store, tokens, now).RunModel(context.Background(), 1))
	assert.Empty(t, tokens.sent)
	require.Len(t, store.records, 1)
	assert.Contains(t, store.records[0].TxResult, "error:")
}

func TestBatchIDsDifferAcrossTicks(t *testing.T) {
	start := time.Now().UTC()
	model := baseModel()
	model.InitialDistribution = map[string]string{alice: "100"}
	model.InitialExecutedAt = &start
	rate := "50"
	model.EmissionRate = &rate
	store := &fakeModelStore{model: model}
	tokens := &fakeTokens{}

	require.NoError(t, newScheduler(store, tokens, start).RunModel(context.Background(), 1))
	require.NoError(t, newScheduler(store, tokens, start.Add(2*time.Minute)).RunModel(context.Background(), 1))

	records := store.recordsOfType(models.DistEmission)
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].BatchID, records[1].BatchID)
}
