package chainstamp

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackTx_ResolvesOnInBlock(t *testing.T) {
	now := time.Unix(1700000000, 0)
	events := make(chan TxStatusEvent, 2)
	events <- TxStatusEvent{State: TxStateSubmitted, TxID: testDigest(1)}
	events <- TxStatusEvent{State: TxStateInBlock, TxID: testDigest(1)}

	tracker := TrackTx(events, fixedClock(now))

	result, err := tracker.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TxStateInBlock, result.State)
	assert.Equal(t, testDigest(1), result.TxID)
	assert.Equal(t, now, result.Timestamp)
}

func TestTrackTx_ResolvesOnFinalized(t *testing.T) {
	events := make(chan TxStatusEvent, 1)
	events <- TxStatusEvent{State: TxStateFinalized, TxID: testDigest(2)}

	tracker := TrackTx(events, defaultClock)

	result, err := tracker.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TxStateFinalized, result.State)
}

func TestTrackTx_DispatchErrorFails(t *testing.T) {
	events := make(chan TxStatusEvent, 2)
	events <- TxStatusEvent{State: TxStateSubmitted, TxID: testDigest(3)}
	events <- TxStatusEvent{TxID: testDigest(3), Err: fmt.Errorf("insufficient balance")}

	tracker := TrackTx(events, defaultClock)

	result, err := tracker.Wait(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)

	var txErr *TxFailedError
	require.ErrorAs(t, err, &txErr)
	assert.Contains(t, txErr.Cause, "insufficient balance")
}

func TestTrackTx_FirstTerminalWins(t *testing.T) {
	// InBlock arrives first, the later failure notification is discarded
	events := make(chan TxStatusEvent, 3)
	events <- TxStatusEvent{State: TxStateInBlock, TxID: testDigest(4)}
	events <- TxStatusEvent{TxID: testDigest(4), Err: fmt.Errorf("late failure")}
	close(events)

	tracker := TrackTx(events, defaultClock)

	result, err := tracker.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TxStateInBlock, result.State)
}

func TestTrackTx_StreamClosedWithoutTerminal(t *testing.T) {
	events := make(chan TxStatusEvent, 1)
	events <- TxStatusEvent{State: TxStateSubmitted, TxID: testDigest(5)}
	close(events)

	tracker := TrackTx(events, defaultClock)

	_, err := tracker.Wait(context.Background())
	require.Error(t, err)

	var txErr *TxFailedError
	require.ErrorAs(t, err, &txErr)
}

func TestTrackTx_WaitHonorsContext(t *testing.T) {
	// No terminal notification ever arrives
	events := make(chan TxStatusEvent)

	tracker := TrackTx(events, defaultClock)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tracker.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The tracker itself did not resolve, only the wait stopped
	assert.False(t, tracker.Resolved())

	close(events)
}

func TestTxTracker_ResolveOnce(t *testing.T) {
	tracker := &TxTracker{done: make(chan struct{})}

	first := &TransactionResult{TxID: testDigest(6), State: TxStateFinalized}
	tracker.Resolve(first, nil)
	tracker.Resolve(nil, fmt.Errorf("must be ignored"))

	result, err := tracker.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, result)
	assert.True(t, tracker.Resolved())
}

func TestTxState_Terminal(t *testing.T) {
	assert.False(t, TxStateSubmitted.Terminal())
	assert.False(t, TxStateInBlock.Terminal())
	assert.True(t, TxStateFinalized.Terminal())
	assert.True(t, TxStateFailed.Terminal())
}
