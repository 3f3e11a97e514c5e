package chainstamp

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
)

// Client is the caller-facing surface of the connector. It wires the
// network registry, connection manager, wallet session, contract client,
// fee model and degraded-mode controller into one service object with an
// explicit lifecycle, replacing the mutable singleton of old dapp clients.
//
// One Client owns exactly one live connection and one contract binding.
// A network switch is a critical section: operations issued concurrently
// with a switch observe either the old or the new binding, never a mix.
type Client struct {
	// switchMu serializes network switches against each other and against
	// Open/Close.
	switchMu sync.Mutex

	cfg *Config

	registry *NetworkRegistry
	conns    *ConnectionManager
	session  *SessionManager
	contract *ContractClient
	degraded *DegradedModeController
	fees     *FeeModel
	store    StampStore
	clock    Clock

	dialer ChainDialer
	wallet WalletProvider
}

// NewClient assembles a client from config and options. It performs no I/O,
// use Open to establish the initial connection.
func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.clock == nil {
		c.clock = defaultClock
	}
	if c.registry == nil {
		c.registry = NewNetworkRegistry()
	}
	if c.store == nil {
		c.store = NewMemoryStampStore()
	}
	if c.wallet == nil && cfg.KeystoreDir != "" {
		c.wallet = NewKeystoreWalletProvider(cfg.KeystoreDir, cfg.KeystorePassphrase)
	}

	if c.dialer == nil {
		c.dialer = DialChain
	}
	c.conns = NewConnectionManager(c.registry, c.dialer)
	c.session = NewSessionManager(c.wallet)
	c.contract = NewContractClient(c.clock)
	c.degraded = NewDegradedModeController(c.contract, c.store, c.clock, cfg.BaselinePrice, cfg.DegradedDelay)
	c.fees = NewFeeModel(c.degraded)

	c.conns.SetTeardownHook(c.contract.DropInstance)
	c.conns.SetSwitchHook(c.contract.ClearBinding)

	return c, nil
}

// Open connects to the configured default network and, when a contract
// address is configured, binds it. The wallet session is not touched, use
// ConnectWallet for that.
func (c *Client) Open(ctx context.Context) error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	network, err := c.registry.Get(c.cfg.NetworkKey)
	if err != nil {
		return err
	}
	if err := c.conns.Connect(ctx, network); err != nil {
		return err
	}
	if c.cfg.ContractAddress != "" {
		c.contract.Bind(ctx, c.conns.Conn(), c.cfg.ContractAddress)
	}
	return nil
}

// Close tears down the connection and the wallet session.
func (c *Client) Close() error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	c.conns.Disconnect()
	c.session.Clear()
	return nil
}

// Connect establishes a connection to the network named by key, replacing
// any current connection. The contract binding survives (only the bound
// instance is re-created against the new handle).
func (c *Client) Connect(ctx context.Context, key string) error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	network, err := c.registry.Get(key)
	if err != nil {
		return err
	}
	if err := c.conns.Connect(ctx, network); err != nil {
		return err
	}
	c.contract.Rebind(ctx, c.conns.Conn())
	return nil
}

// SwitchNetwork moves the connection to the network named by key. A no-op
// when already connected there; an unknown key fails with ErrUnknownNetwork
// and leaves everything untouched. On an actual switch the contract binding
// is discarded before the new connection is established.
func (c *Client) SwitchNetwork(ctx context.Context, key string) error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	return c.conns.SwitchNetwork(ctx, key)
}

// Disconnect retires the live connection. Idempotent.
func (c *Client) Disconnect() {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	c.conns.Disconnect()
}

// IsConnected returns the connection liveness flag. Level-triggered: poll it
// (e.g. every DefaultPollInterval) and dedupe reactions yourself.
func (c *Client) IsConnected() bool {
	return c.conns.IsConnected()
}

// CurrentNetwork returns the network of the current (or last) connection.
func (c *Client) CurrentNetwork() Network {
	return c.conns.CurrentNetwork()
}

// AvailableNetworks lists the registered networks in order.
func (c *Client) AvailableNetworks() []Network {
	return c.registry.Networks()
}

// ConnectWallet authorizes the wallet for the configured app identity and
// establishes the account session. Returns the active account's address.
func (c *Client) ConnectWallet(ctx context.Context) (common.Address, error) {
	if c.wallet == nil {
		return common.Address{}, fmt.Errorf("%w: no wallet provider configured", ErrNotConnected)
	}
	accounts, err := c.session.RequestAccounts(ctx, c.cfg.AppName)
	if err != nil {
		return common.Address{}, err
	}
	return accounts[0].Address, nil
}

// Accounts lists the wallet accounts discovered by ConnectWallet.
func (c *Client) Accounts() []Account {
	return c.session.Accounts()
}

// SwitchAccount re-binds the signer to another account from the session.
func (c *Client) SwitchAccount(ctx context.Context, account Account) error {
	return c.session.SwitchAccount(ctx, account)
}

// GetActiveAddress returns the active wallet address, or false when no
// wallet session exists.
func (c *Client) GetActiveAddress() (common.Address, bool) {
	return c.session.ActiveAddress()
}

// SetContractAddress stores the contract address and attempts to bind an
// instance against the live connection. A failed instance construction is
// swallowed, the address-only binding enables degraded mode.
func (c *Client) SetContractAddress(ctx context.Context, address string) {
	c.contract.Bind(ctx, c.conns.Conn(), address)
	if c.degraded.Active() {
		logger.WithFields(logger.Fields{
			"address": address,
		}).Warn("No contract instance bound, ledger calls will be simulated in degraded mode")
	}
}

// ContractAddress returns the configured contract address, empty if none.
func (c *Client) ContractAddress() string {
	return c.contract.Address()
}

// Degraded reports whether the connector is substituting fabricated
// responses because no live contract binding exists.
func (c *Client) Degraded() bool {
	return c.degraded.Active()
}

// GetPricePerByte retrieves the current stamping price per byte.
func (c *Client) GetPricePerByte(ctx context.Context) (*big.Int, error) {
	caller, _ := c.session.ActiveAddress()
	return c.fees.PricePerByte(ctx, caller)
}

// EstimateFee returns price × size for the given declared size, always
// against a freshly retrieved price.
func (c *Client) EstimateFee(ctx context.Context, size uint64) (*big.Int, error) {
	caller, _ := c.session.ActiveAddress()
	return c.fees.EstimateFee(ctx, caller, size)
}

// StampHash records the digest on the ledger via the payable stamp call and
// waits for the single terminal result. In degraded mode a fabricated
// success is produced instead, flagged as such.
//
// There is no cancellation of a broadcast transaction: cancelling ctx only
// stops waiting for the result.
func (c *Client) StampHash(ctx context.Context, digest common.Hash, size uint64) (*TransactionResult, error) {
	caller, _ := c.session.ActiveAddress()

	// Price retrieval always precedes fee computation.
	fee, err := c.fees.EstimateFee(ctx, caller, size)
	if err != nil {
		return nil, err
	}

	var signer Signer
	if !c.degraded.Active() {
		signer, err = c.session.Signer()
		if err != nil {
			return nil, err
		}
	}

	result, err := c.degraded.SubmitStamp(ctx, caller, signer, digest, size, fee)
	if err != nil {
		return nil, err
	}

	// Fabricated stamps are recorded by the degraded controller itself.
	if !result.Degraded {
		rec := StampRecord{
			Digest:    digest,
			Size:      size,
			Fee:       fee,
			TxID:      result.TxID,
			Timestamp: result.Timestamp,
		}
		if recErr := c.store.RecordStamp(ctx, rec); recErr != nil {
			logger.WithFields(logger.Fields{
				"digest": digest.Hex(),
				"error":  recErr,
			}).Error("Recording stamp failed, the on-chain stamp itself succeeded")
		}
	}

	return result, nil
}

// VerifyHash reports whether the digest was previously stamped and when.
func (c *Client) VerifyHash(ctx context.Context, digest common.Hash) (*VerificationResult, error) {
	caller, _ := c.session.ActiveAddress()
	return c.degraded.QueryTimestamp(ctx, caller, digest)
}

// GetStats returns the contract's aggregate counters.
func (c *Client) GetStats(ctx context.Context) (*ContractStats, error) {
	caller, _ := c.session.ActiveAddress()
	return c.degraded.QueryStats(ctx, caller)
}

// GetBalance returns the free balance of addr, or of the active account
// when addr is nil. Query failures resolve to zero to keep display paths
// resilient.
func (c *Client) GetBalance(ctx context.Context, addr *common.Address) (*big.Int, error) {
	conn := c.conns.Conn()
	if conn == nil {
		return nil, fmt.Errorf("%w: no live connection", ErrNotConnected)
	}

	target := common.Address{}
	if addr != nil {
		target = *addr
	} else {
		active, ok := c.session.ActiveAddress()
		if !ok {
			return nil, fmt.Errorf("%w: no active wallet account", ErrNotConnected)
		}
		target = active
	}

	balance, err := conn.BalanceAt(ctx, target)
	if err != nil {
		logger.WithFields(logger.Fields{
			"address": target.Hex(),
			"error":   err,
		}).Error("Balance query failed, resolving to zero")
		return big.NewInt(0), nil
	}
	return balance, nil
}

// History returns up to limit most recent stamp records, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]StampRecord, error) {
	return c.store.History(ctx, limit)
}

// ExplorerTxURL builds an explorer link for a transaction id on the current
// network, empty when the network has no explorer.
func (c *Client) ExplorerTxURL(txID common.Hash) string {
	return ExplorerTxURL(c.conns.CurrentNetwork(), txID.Hex())
}
