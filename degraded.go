package chainstamp

import (
	"context"
	"encoding/binary"
	"math"
	"math/big"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Degraded-mode baselines. The fabricated numbers exist to keep the
// application usable before a real contract is deployed, they simulate
// plausible live data and are never real market data.
const (
	degradedStatsBaseCount  = 1247
	degradedStatsBaseVolume = "15420000000000000"
	degradedStampAge        = 30 * time.Second
	degradedStatsAge        = 5 * time.Minute
)

// DegradedModeController wraps the contract client and substitutes
// deterministic fabricated responses when a contract address is configured
// but no contract instance could be bound. It never overrides a successful
// real binding.
//
// The mode is observable through Active and through the Degraded flag on
// every fabricated result, so callers can disclose that a ledger call was
// simulated.
type DegradedModeController struct {
	live  *ContractClient
	store StampStore
	clock Clock

	baselinePrice int64
	delay         time.Duration
}

// NewDegradedModeController decorates live with fabricated fallbacks.
// store holds the "last fabricated digest" side channel.
func NewDegradedModeController(live *ContractClient, store StampStore, clock Clock, baselinePrice int64, delay time.Duration) *DegradedModeController {
	return &DegradedModeController{
		live:          live,
		store:         store,
		clock:         clock,
		baselinePrice: baselinePrice,
		delay:         delay,
	}
}

// Active reports whether degraded mode is in effect: an address is
// configured but no bound instance exists.
func (d *DegradedModeController) Active() bool {
	return d.live.Instance() == nil && d.live.Address() != ""
}

// oscillation is a deterministic time-based perturbation in [-amp, amp].
// Repeatable within a short window, no random component.
func (d *DegradedModeController) oscillation(period time.Duration, amp float64) float64 {
	ms := d.clock().UnixMilli()
	return math.Sin(float64(ms)/float64(period.Milliseconds())) * amp
}

// QueryPricePerByte returns the live price, or a baseline perturbed by a
// small time-based oscillation when degraded.
func (d *DegradedModeController) QueryPricePerByte(ctx context.Context, caller common.Address) (*big.Int, error) {
	if !d.Active() {
		return d.live.QueryPricePerByte(ctx, caller)
	}

	price := int64(math.Floor(float64(d.baselinePrice) * (1 + d.oscillation(5*time.Second, 0.2))))
	if price < MinDegradedPrice {
		price = MinDegradedPrice
	}
	logger.WithFields(logger.Fields{
		"price": price,
	}).Debug("Degraded mode: fabricated price per byte")
	return big.NewInt(price), nil
}

// QueryTimestamp reports "exists" only for the digest most recently stamped
// through this controller in degraded mode, with a fabricated recent
// timestamp. All other digests report not found.
func (d *DegradedModeController) QueryTimestamp(ctx context.Context, caller common.Address, digest common.Hash) (*VerificationResult, error) {
	if !d.Active() {
		return d.live.QueryTimestamp(ctx, caller, digest)
	}

	last, ok, err := d.store.LastDigest(ctx)
	if err != nil {
		logger.WithFields(logger.Fields{
			"error": err,
		}).Error("Degraded mode: reading last stamped digest failed, resolving to not found")
		return &VerificationResult{Exists: false, Degraded: true}, nil
	}
	if !ok || last != digest {
		return &VerificationResult{Exists: false, Degraded: true}, nil
	}
	return &VerificationResult{
		Exists:    true,
		Timestamp: d.clock().Add(-degradedStampAge).Unix(),
		Degraded:  true,
	}, nil
}

// QueryStats returns live stats, or a fixed baseline aggregate with a small
// deterministic perturbation when degraded.
func (d *DegradedModeController) QueryStats(ctx context.Context, caller common.Address) (*ContractStats, error) {
	if !d.Active() {
		return d.live.QueryStats(ctx, caller)
	}

	volume, _ := new(big.Int).SetString(degradedStatsBaseVolume, 10)
	count := uint64(math.Floor(degradedStatsBaseCount * (1 + d.oscillation(20*time.Second, 0.05))))
	return &ContractStats{
		TotalCount:  count,
		TotalVolume: volume,
		LastUpdated: d.clock().Add(-degradedStatsAge).Unix(),
		Degraded:    true,
	}, nil
}

// SubmitStamp submits a real stamp transaction, or fabricates a terminal
// success after the configured artificial delay when degraded. The
// fabricated transaction id is a syntactically valid 32-byte hash and the
// digest is recorded in the last-stamped-digest slot.
func (d *DegradedModeController) SubmitStamp(
	ctx context.Context,
	caller common.Address,
	signer Signer,
	digest common.Hash,
	size uint64,
	fee *big.Int,
) (*TransactionResult, error) {
	if !d.Active() {
		return d.live.SubmitStamp(ctx, caller, signer, digest, size, fee)
	}

	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	now := d.clock()
	txID := fabricateTxID(digest, now)

	rec := StampRecord{
		Digest:    digest,
		Size:      size,
		Fee:       fee,
		TxID:      txID,
		Timestamp: now,
		Degraded:  true,
	}
	if err := d.store.RecordStamp(ctx, rec); err != nil {
		logger.WithFields(logger.Fields{
			"digest": digest.Hex(),
			"error":  err,
		}).Error("Degraded mode: recording fabricated stamp failed")
		return nil, NewTxFailedError(err)
	}

	logger.WithFields(logger.Fields{
		"digest": digest.Hex(),
		"tx_id":  txID.Hex(),
	}).Warn("Degraded mode: fabricated stamp transaction, no ledger side effect happened")

	return &TransactionResult{
		TxID:      txID,
		State:     TxStateFinalized,
		Timestamp: now,
		Degraded:  true,
	}, nil
}

// fabricateTxID derives a plausible transaction id from the digest and the
// fabrication time.
func fabricateTxID(digest common.Hash, at time.Time) common.Hash {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(at.UnixNano()))
	return crypto.Keccak256Hash(digest.Bytes(), ts[:])
}
