package chainstamp

import (
	"context"
	"fmt"
	"sync"

	"github.com/KyberNetwork/logger"
)

// TxTracker drives one submitted transaction through its lifecycle,
// collapsing the asynchronous status notifications into a single terminal
// result.
//
// The first dispatch error or the first InBlock/Finalized notification
// resolves the outcome, whichever arrives first; "in block" is accepted as
// sufficient confirmation without waiting for finalization. After resolving,
// the subscription is torn down and any further notifications are discarded.
type TxTracker struct {
	once sync.Once
	done chan struct{}

	result *TransactionResult
	err    error
}

// TrackTx starts tracking the given status stream. The tracker stops reading
// the stream as soon as it resolves.
func TrackTx(events <-chan TxStatusEvent, clock Clock) *TxTracker {
	t := &TxTracker{done: make(chan struct{})}

	go func() {
		for ev := range events {
			if ev.Err != nil {
				t.resolve(nil, NewTxFailedError(ev.Err))
				return
			}
			switch ev.State {
			case TxStateInBlock, TxStateFinalized:
				t.resolve(&TransactionResult{
					TxID:      ev.TxID,
					State:     ev.State,
					Timestamp: clock(),
				}, nil)
				return
			default:
				// Submitted and other informational states, keep listening.
			}
		}
		// The stream closed without a terminal notification. This only
		// happens when the subscription itself died.
		t.resolve(nil, NewTxFailedError(fmt.Errorf("status subscription closed before a terminal notification")))
	}()

	return t
}

// resolve records the outcome at most once. Late or out-of-order
// notifications after resolution are discarded, not an error.
func (t *TxTracker) resolve(result *TransactionResult, err error) {
	t.once.Do(func() {
		t.result = result
		t.err = err
		if err != nil {
			logger.WithFields(logger.Fields{
				"error": err,
			}).Error("Transaction failed")
		} else {
			logger.WithFields(logger.Fields{
				"tx_id": result.TxID.Hex(),
				"state": string(result.State),
			}).Info("Transaction confirmed")
		}
		close(t.done)
	})
}

// Resolve feeds a terminal outcome directly. Used by tests and by callers
// that observe the lifecycle out of band; only the first resolution wins.
func (t *TxTracker) Resolve(result *TransactionResult, err error) {
	t.resolve(result, err)
}

// Wait blocks until the tracker resolves or ctx is done. Cancelling ctx only
// stops waiting, it does not stop the broadcast transaction's side effect on
// the chain.
func (t *TxTracker) Wait(ctx context.Context) (*TransactionResult, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolved reports whether the tracker has already produced its outcome.
func (t *TxTracker) Resolved() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
