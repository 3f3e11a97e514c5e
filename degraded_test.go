package chainstamp

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDegradedController returns a controller in degraded mode: address set,
// no bound instance.
func newDegradedController(t *testing.T, store StampStore, clock Clock) *DegradedModeController {
	t.Helper()
	live := NewContractClient(clock)
	live.Bind(context.Background(), nil, testContractAddress)
	d := NewDegradedModeController(live, store, clock, DefaultBaselinePrice, 0)
	if !d.Active() {
		t.Fatal("controller is not in degraded mode")
	}
	return d
}

func TestDegradedMode_Activation(t *testing.T) {
	live := NewContractClient(defaultClock)
	d := NewDegradedModeController(live, NewMemoryStampStore(), defaultClock, DefaultBaselinePrice, 0)

	// No address, no degraded mode
	assert.False(t, d.Active())

	// Address without an instance activates it
	live.Bind(context.Background(), nil, testContractAddress)
	assert.True(t, d.Active())

	// A successful instance binding deactivates it
	conn := &mockChainConn{
		BindContractFn: func(string) (ContractHandle, error) { return &mockContractHandle{}, nil },
	}
	live.Rebind(context.Background(), conn)
	assert.False(t, d.Active())

	// Dropping the instance re-activates it
	live.DropInstance()
	assert.True(t, d.Active())
}

func TestDegradedMode_PriceWithinBandAndDeterministic(t *testing.T) {
	now := time.Unix(1700000000, 123000000)
	d := newDegradedController(t, NewMemoryStampStore(), fixedClock(now))
	ctx := context.Background()

	price, err := d.QueryPricePerByte(ctx, common.Address{})
	require.NoError(t, err)

	// Oscillation is bounded at 20% of the baseline
	assert.GreaterOrEqual(t, price.Int64(), int64(800))
	assert.LessOrEqual(t, price.Int64(), int64(1200))

	// Same instant, same price: the perturbation has no random component
	again, err := d.QueryPricePerByte(ctx, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, price.Int64(), again.Int64())
}

func TestDegradedMode_PriceFloor(t *testing.T) {
	// A tiny baseline can never push the price below the floor
	live := NewContractClient(defaultClock)
	live.Bind(context.Background(), nil, testContractAddress)
	d := NewDegradedModeController(live, NewMemoryStampStore(), defaultClock, 10, 0)

	price, err := d.QueryPricePerByte(context.Background(), common.Address{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, price.Int64(), int64(MinDegradedPrice))
}

func TestDegradedMode_PriceDelegatesWhenLive(t *testing.T) {
	handle := &mockContractHandle{
		PricePerByteFn: func(common.Address) (*big.Int, error) { return big.NewInt(777), nil },
	}
	live := newBoundContractClient(t, handle)
	d := NewDegradedModeController(live, NewMemoryStampStore(), defaultClock, DefaultBaselinePrice, 0)

	price, err := d.QueryPricePerByte(context.Background(), common.Address{})
	require.NoError(t, err)
	assert.Equal(t, int64(777), price.Int64())
	assert.Equal(t, 1, handle.PricePerByteCalls)
}

func TestDegradedMode_SubmitAndVerify(t *testing.T) {
	now := time.Unix(1700000000, 0)
	store := NewMemoryStampStore()
	d := newDegradedController(t, store, fixedClock(now))
	ctx := context.Background()

	digestA := testDigest(0xa)
	digestB := testDigest(0xb)

	result, err := d.SubmitStamp(ctx, common.Address{}, nil, digestA, 1024, big.NewInt(1024000))
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, TxStateFinalized, result.State)
	assert.NotEqual(t, common.Hash{}, result.TxID)

	// The fabricated id is deterministic for (digest, instant)
	assert.Equal(t, fabricateTxID(digestA, now), result.TxID)

	// The stamped digest verifies with a recent fabricated timestamp
	verification, err := d.QueryTimestamp(ctx, common.Address{}, digestA)
	require.NoError(t, err)
	assert.True(t, verification.Exists)
	assert.True(t, verification.Degraded)
	assert.Equal(t, now.Add(-30*time.Second).Unix(), verification.Timestamp)

	// Any other digest reports not found
	other, err := d.QueryTimestamp(ctx, common.Address{}, digestB)
	require.NoError(t, err)
	assert.False(t, other.Exists)
	assert.True(t, other.Degraded)

	// The fabricated stamp landed in the store, flagged
	records, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, digestA, records[0].Digest)
	assert.True(t, records[0].Degraded)
}

func TestDegradedMode_VerifyEmptyStore(t *testing.T) {
	d := newDegradedController(t, NewMemoryStampStore(), defaultClock)

	verification, err := d.QueryTimestamp(context.Background(), common.Address{}, testDigest(1))
	require.NoError(t, err)
	assert.False(t, verification.Exists)
	assert.True(t, verification.Degraded)
}

func TestDegradedMode_SubmitHonorsDelay(t *testing.T) {
	live := NewContractClient(defaultClock)
	live.Bind(context.Background(), nil, testContractAddress)
	d := NewDegradedModeController(live, NewMemoryStampStore(), defaultClock, DefaultBaselinePrice, 30*time.Millisecond)

	start := time.Now()
	_, err := d.SubmitStamp(context.Background(), common.Address{}, nil, testDigest(1), 1, big.NewInt(1))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDegradedMode_SubmitCancelledDuringDelay(t *testing.T) {
	live := NewContractClient(defaultClock)
	live.Bind(context.Background(), nil, testContractAddress)
	store := NewMemoryStampStore()
	d := NewDegradedModeController(live, store, defaultClock, DefaultBaselinePrice, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := d.SubmitStamp(ctx, common.Address{}, nil, testDigest(1), 1, big.NewInt(1))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Nothing was recorded for the abandoned submission
	_, ok, err := store.LastDigest(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDegradedMode_Stats(t *testing.T) {
	now := time.Unix(1700000000, 0)
	d := newDegradedController(t, NewMemoryStampStore(), fixedClock(now))

	stats, err := d.QueryStats(context.Background(), common.Address{})
	require.NoError(t, err)
	assert.True(t, stats.Degraded)
	assert.Equal(t, now.Add(-5*time.Minute).Unix(), stats.LastUpdated)

	// Count stays near the baseline, volume is the fixed baseline
	assert.InDelta(t, 1247, float64(stats.TotalCount), 1247*0.05+1)
	assert.Equal(t, "15420000000000000", stats.TotalVolume.String())
}

func TestFabricateTxID(t *testing.T) {
	at := time.Unix(1700000000, 42)
	id1 := fabricateTxID(testDigest(1), at)
	id2 := fabricateTxID(testDigest(1), at)
	id3 := fabricateTxID(testDigest(2), at)
	id4 := fabricateTxID(testDigest(1), at.Add(time.Nanosecond))

	// Deterministic in (digest, time), distinct otherwise
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.NotEqual(t, id1, id4)

	// Syntactically a full 32-byte hash
	assert.Len(t, id1.Hex(), 66)
}
