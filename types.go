package chainstamp

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Constants for connection and transaction handling
const (
	// DefaultPollInterval is the interval at which observers are expected to
	// poll IsConnected. The poll is level-triggered, callers dedupe reactions
	// themselves.
	DefaultPollInterval = 5 * time.Second

	// DefaultDegradedDelay is the artificial delay before a fabricated
	// transaction resolves in degraded mode.
	DefaultDegradedDelay = 2 * time.Second

	// DefaultBaselinePrice is the nominal price per byte (in the chain's
	// smallest unit) used by the degraded price source.
	DefaultBaselinePrice = 1000

	// MinDegradedPrice is the floor for the degraded price source.
	MinDegradedPrice = 100
)

// TxState is the lifecycle state of a stamp transaction.
type TxState string

const (
	// TxStateSubmitted indicates the transaction was signed and broadcast.
	TxStateSubmitted TxState = "submitted"
	// TxStateInBlock indicates the transaction was included in a block.
	TxStateInBlock TxState = "in_block"
	// TxStateFinalized indicates the block containing the transaction was finalized.
	TxStateFinalized TxState = "finalized"
	// TxStateFailed indicates the transaction failed at any point before finalization.
	TxStateFailed TxState = "failed"
)

// Terminal reports whether the state ends the transaction lifecycle.
func (s TxState) Terminal() bool {
	return s == TxStateFinalized || s == TxStateFailed
}

// Network describes a chain endpoint the client can connect to.
type Network struct {
	// Key is the registry lookup key, e.g. "shibuya".
	Key string
	// Name is the human-readable network name.
	Name string
	// Endpoint is the RPC endpoint URL.
	Endpoint string
	// Explorer is the block explorer base URL, empty if the network has none.
	Explorer string
}

// Account is a wallet account exposed by a WalletProvider.
type Account struct {
	Address common.Address
	// Name is the display name the wallet attached to the account.
	Name string
	// Source identifies the signing source the account came from
	// (e.g. a keystore file URL or an extension name).
	Source string
}

// TxStatusEvent is one asynchronous status notification for a submitted
// transaction. A non-nil Err is a dispatch error and terminates the
// lifecycle; InBlock and Finalized are success notifications.
type TxStatusEvent struct {
	State TxState
	TxID  common.Hash
	Err   error
}

// TransactionResult is the single terminal outcome of a stamp submission.
type TransactionResult struct {
	TxID      common.Hash
	State     TxState
	Timestamp time.Time
	// Degraded is true when the result was fabricated by the degraded-mode
	// controller instead of a live contract call.
	Degraded bool
}

// VerificationResult reports whether a digest was previously stamped.
type VerificationResult struct {
	Exists bool
	// Timestamp is the recorded stamp time in seconds since epoch.
	// Only meaningful when Exists is true.
	Timestamp int64
	Degraded  bool
}

// ContractStats is the aggregate state reported by the stamping contract.
type ContractStats struct {
	TotalCount  uint64
	TotalVolume *big.Int
	LastUpdated int64
	Degraded    bool
}

// StampRecord is the connector-side record of a successful stamp.
type StampRecord struct {
	Digest    common.Hash
	Size      uint64
	Fee       *big.Int
	TxID      common.Hash
	Timestamp time.Time
	Degraded  bool
}
