package chainstamp

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
)

// ContractClient binds a deployed contract address to the live connection
// and exposes the contract's read and write operations.
//
// The address and the bound instance are tracked separately: an address with
// no instance is a valid state (it is exactly the state the degraded-mode
// controller activates on), so a failed instance construction is logged and
// swallowed rather than raised.
type ContractClient struct {
	mu sync.RWMutex

	address  string
	instance ContractHandle

	clock Clock
}

// NewContractClient creates an unbound contract client.
func NewContractClient(clock Clock) *ContractClient {
	return &ContractClient{clock: clock}
}

// Bind stores the contract address and, when a live connection exists,
// attempts to construct a contract instance against it. Construction
// failures leave the address-only binding in place.
func (cc *ContractClient) Bind(ctx context.Context, conn ChainConn, address string) {
	cc.mu.Lock()
	cc.address = address
	cc.instance = nil
	cc.mu.Unlock()

	logger.WithFields(logger.Fields{
		"address": address,
	}).Info("Contract address set")

	if conn != nil {
		cc.Rebind(ctx, conn)
	}
}

// Rebind retries instance construction against the given connection using
// the stored address. A no-op without an address. Failures are swallowed.
func (cc *ContractClient) Rebind(ctx context.Context, conn ChainConn) {
	cc.mu.RLock()
	address := cc.address
	cc.mu.RUnlock()

	if address == "" || conn == nil {
		return
	}

	instance, err := conn.BindContract(ctx, address)
	if err != nil {
		logger.WithFields(logger.Fields{
			"address": address,
			"error":   err,
		}).Warn("Contract instance construction failed, falling back to address-only binding")
		return
	}

	cc.mu.Lock()
	cc.instance = instance
	cc.mu.Unlock()

	logger.WithFields(logger.Fields{
		"address": address,
	}).Info("Contract instance bound")
}

// ClearBinding discards both the address and the instance. Called on network
// switch since contract addresses are network-scoped.
func (cc *ContractClient) ClearBinding() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.address = ""
	cc.instance = nil
}

// DropInstance discards the instance but keeps the address, leaving an
// address-only binding. Called when the live connection goes away.
func (cc *ContractClient) DropInstance() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.instance = nil
}

// Address returns the configured contract address, empty if none.
func (cc *ContractClient) Address() string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.address
}

// Instance returns the bound contract handle, nil if construction never
// succeeded.
func (cc *ContractClient) Instance() ContractHandle {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.instance
}

// QueryPricePerByte performs the get_price_per_byte read call. Query errors
// on a live instance resolve to zero to keep display paths resilient.
func (cc *ContractClient) QueryPricePerByte(ctx context.Context, caller common.Address) (*big.Int, error) {
	instance := cc.Instance()
	if instance == nil {
		return nil, fmt.Errorf("%w: no contract instance and no address configured", ErrContractNotInitialized)
	}
	price, err := instance.PricePerByte(ctx, caller)
	if err != nil {
		logger.WithFields(logger.Fields{
			"caller": caller.Hex(),
			"error":  err,
		}).Error("Price query failed, resolving to zero")
		return big.NewInt(0), nil
	}
	return price, nil
}

// QueryTimestamp performs the get_timestamp read call. Query errors resolve
// to "not found".
func (cc *ContractClient) QueryTimestamp(ctx context.Context, caller common.Address, digest common.Hash) (*VerificationResult, error) {
	instance := cc.Instance()
	if instance == nil {
		return nil, fmt.Errorf("%w: no contract instance and no address configured", ErrContractNotInitialized)
	}
	ts, exists, err := instance.Timestamp(ctx, caller, digest)
	if err != nil {
		logger.WithFields(logger.Fields{
			"digest": digest.Hex(),
			"error":  err,
		}).Error("Timestamp query failed, resolving to not found")
		return &VerificationResult{Exists: false}, nil
	}
	return &VerificationResult{Exists: exists, Timestamp: ts}, nil
}

// QueryStats performs the get_stats aggregate read call. Query errors
// resolve to empty stats.
func (cc *ContractClient) QueryStats(ctx context.Context, caller common.Address) (*ContractStats, error) {
	instance := cc.Instance()
	if instance == nil {
		return nil, fmt.Errorf("%w: no contract instance and no address configured", ErrContractNotInitialized)
	}
	stats, err := instance.Stats(ctx, caller)
	if err != nil {
		logger.WithFields(logger.Fields{
			"caller": caller.Hex(),
			"error":  err,
		}).Error("Stats query failed, resolving to empty stats")
		return &ContractStats{TotalVolume: big.NewInt(0)}, nil
	}
	return stats, nil
}

// SubmitStamp constructs, signs and broadcasts the payable stamp_hash_paid
// call and tracks it to a single terminal result. Submission-time failures
// (including a signing rejection) surface as TxFailedError with no partial
// state retained.
func (cc *ContractClient) SubmitStamp(
	ctx context.Context,
	caller common.Address,
	signer Signer,
	digest common.Hash,
	size uint64,
	fee *big.Int,
) (*TransactionResult, error) {
	instance := cc.Instance()
	if instance == nil {
		return nil, fmt.Errorf("%w: no contract instance and no address configured", ErrContractNotInitialized)
	}

	events, err := instance.SubmitStamp(ctx, caller, signer, digest, size, fee)
	if err != nil {
		logger.WithFields(logger.Fields{
			"digest": digest.Hex(),
			"size":   size,
			"error":  err,
		}).Error("Stamp submission failed")
		return nil, NewTxFailedError(err)
	}

	logger.WithFields(logger.Fields{
		"digest": digest.Hex(),
		"size":   size,
		"fee":    fee.String(),
	}).Info("Stamp transaction submitted")

	tracker := TrackTx(events, cc.clock)
	return tracker.Wait(ctx)
}
