package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/fluidpay/internal/types"
	"github.com/vultisig/fluidpay/storage"
)

func settlement(requestID, caller string, created time.Time) types.Settlement {
	return types.Settlement{
		ID:        uuid.New(),
		RequestID: requestID,
		Caller:    caller,
		Status:    types.SettlementPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestStoreSettlements(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := settlement("r1", "0xa", base)
	second := settlement("r2", "0xa", base.Add(time.Minute))
	other := settlement("r3", "0xb", base.Add(2*time.Minute))
	for _, st := range []types.Settlement{first, second, other} {
		require.NoError(t, s.InsertSettlement(ctx, st))
	}

	dup := settlement("r1", "0xa", base)
	assert.ErrorIs(t, s.InsertSettlement(ctx, dup), storage.ErrDuplicateKey)

	got, err := s.GetSettlementByRequestID(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = s.GetSettlement(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	first.Status = types.SettlementSettled
	require.NoError(t, s.UpdateSettlement(ctx, first))
	got, err = s.GetSettlement(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SettlementSettled, got.Status)
	assert.ErrorIs(t, s.UpdateSettlement(ctx, dup), storage.ErrNotFound)

	list, err := s.ListSettlements(ctx, "0xa", "-created_at", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	list, err = s.ListSettlements(ctx, "", "created_at", 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	list, err = s.ListSettlements(ctx, "", "", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStoreModuleState(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.LoadModuleState(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.RecordConfigChange(ctx, types.ConfigEvent{Action: "set_fee", Params: json.RawMessage(`{"fee_bps":1}`)}))
	require.NoError(t, s.RecordConfigChange(ctx, types.ConfigEvent{Action: "set_fee", Params: json.RawMessage(`{"fee_bps":2}`)}))

	state, err := s.LoadModuleState(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fee_bps":2}`, string(state))

	events, err := s.ListConfigEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(2), events[0].ID)
}

func TestClaims(t *testing.T) {
	ctx := context.Background()
	c := NewClaims()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ok, err := c.Claim(ctx, "settle:r1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = c.Claim(ctx, "settle:r1", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = c.Claim(ctx, "settle:r1", time.Minute)
	assert.True(t, ok)

	require.NoError(t, c.Release(ctx, "settle:r1"))
	ok, _ = c.Claim(ctx, "settle:r1", time.Minute)
	assert.True(t, ok)
}
