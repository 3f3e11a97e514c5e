// deps.go defines minimal interfaces for external collaborators.
// This allows for easy mocking in tests and decouples the connector from the
// concrete chain client and wallet implementations.
package chainstamp

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainConn is a live connection to a network endpoint. Exactly one
// ChainConn is owned by a ConnectionManager at a time.
type ChainConn interface {
	// BindContract constructs a contract handle bound to the deployed
	// contract at the given address on this connection.
	BindContract(ctx context.Context, address string) (ContractHandle, error)

	// BalanceAt returns the free balance of the given address.
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)

	// Close tears down the connection. Safe to call more than once.
	Close() error
}

// ChainDialer establishes a ChainConn against a network endpoint.
// This is injectable so tests can substitute a fake chain.
type ChainDialer func(ctx context.Context, network Network) (ChainConn, error)

// ContractHandle is a contract instance bound to a live connection.
// It exposes the fixed query/transaction interface of the stamping contract.
type ContractHandle interface {
	// PricePerByte is the get_price_per_byte read call.
	PricePerByte(ctx context.Context, caller common.Address) (*big.Int, error)

	// Timestamp is the get_timestamp read call. It returns the recorded
	// stamp time in seconds since epoch and whether a record exists.
	Timestamp(ctx context.Context, caller common.Address, digest common.Hash) (int64, bool, error)

	// Stats is the get_stats aggregate read call.
	Stats(ctx context.Context, caller common.Address) (*ContractStats, error)

	// SubmitStamp signs and broadcasts the payable stamp_hash_paid call
	// carrying (digest, size) with the fee attached as value. It returns a
	// stream of status notifications for the broadcast transaction; the
	// stream is closed after a terminal notification. Submission-time
	// failures (including signing rejection) are returned directly.
	SubmitStamp(
		ctx context.Context,
		caller common.Address,
		signer Signer,
		digest common.Hash,
		size uint64,
		fee *big.Int,
	) (<-chan TxStatusEvent, error)
}

// Signer is the capability used to co-sign a stamp transaction. It is bound
// to one account's signing source by the SessionManager.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// WalletProvider is the wallet/session collaborator: account discovery and
// signer binding. The default implementation is keystore-backed, browser
// extension style providers plug in the same way.
type WalletProvider interface {
	// Enable requests wallet authorization for the given app identity.
	Enable(ctx context.Context, appName string) error

	// Accounts lists the accounts the wallet exposed after authorization.
	Accounts(ctx context.Context) ([]Account, error)

	// Signer returns the signing capability for an account's source.
	Signer(ctx context.Context, source string) (Signer, error)
}

// StampStore persists stamp records and the degraded-mode last-digest slot.
// Implementations must be safe for concurrent use.
type StampStore interface {
	// RecordStamp appends a stamp record and updates the last-digest slot.
	RecordStamp(ctx context.Context, rec StampRecord) error

	// LastDigest returns the digest of the most recent recorded stamp.
	LastDigest(ctx context.Context) (common.Hash, bool, error)

	// History returns up to limit most recent stamp records, newest first.
	// limit <= 0 means no limit.
	History(ctx context.Context, limit int) ([]StampRecord, error)
}

// Clock returns the current time. Injectable so the degraded-mode price
// oscillation and fabricated timestamps are testable.
type Clock func() time.Time
