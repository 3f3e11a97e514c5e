// adapters.go provides the default implementations of the collaborator
// interfaces in deps.go: a go-ethereum backed chain connection and contract
// handle, and a keystore-backed wallet provider.
package chainstamp

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// stampingContractABI is the fixed query/transaction interface of the
// deployed stamping contract.
const stampingContractABI = `[
  {"type":"function","name":"get_price_per_byte","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"get_timestamp","stateMutability":"view","inputs":[{"name":"digest","type":"bytes32"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","name":"get_stats","stateMutability":"view","inputs":[],"outputs":[{"name":"count","type":"uint64"},{"name":"volume","type":"uint256"},{"name":"last_updated","type":"uint64"}]},
  {"type":"function","name":"stamp_hash_paid","stateMutability":"payable","inputs":[{"name":"digest","type":"bytes32"},{"name":"size","type":"uint64"}],"outputs":[]}
]`

var parseStampingABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(stampingContractABI))
})

// receiptPollInterval is how often a broadcast transaction is polled for
// inclusion.
const receiptPollInterval = 5 * time.Second

// DialChain is the default ChainDialer. It dials the network endpoint with
// go-ethereum's RPC client (ws, wss and http endpoints all work).
func DialChain(ctx context.Context, network Network) (ChainConn, error) {
	client, err := ethclient.DialContext(ctx, network.Endpoint)
	if err != nil {
		return nil, err
	}
	return &ethConn{client: client}, nil
}

// ethConn is a live go-ethereum connection.
type ethConn struct {
	client    *ethclient.Client
	closeOnce sync.Once
}

func (c *ethConn) BindContract(ctx context.Context, address string) (ContractHandle, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%s is not a valid contract address", address)
	}
	parsed, err := parseStampingABI()
	if err != nil {
		return nil, fmt.Errorf("couldn't parse stamping contract interface: %w", err)
	}

	addr := common.HexToAddress(address)
	code, err := c.client.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't check contract code at %s: %w", address, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("no contract code at %s", address)
	}

	return &ethContractHandle{client: c.client, abi: parsed, address: addr}, nil
}

func (c *ethConn) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.client.BalanceAt(ctx, addr, nil)
}

func (c *ethConn) Close() error {
	c.closeOnce.Do(c.client.Close)
	return nil
}

// ethContractHandle is a contract instance bound to an ethConn.
type ethContractHandle struct {
	client  *ethclient.Client
	abi     abi.ABI
	address common.Address
}

func (h *ethContractHandle) call(ctx context.Context, caller common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := h.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't pack %s call: %w", method, err)
	}
	out, err := h.client.CallContract(ctx, ethereum.CallMsg{
		From: caller,
		To:   &h.address,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	values, err := h.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("couldn't unpack %s result: %w", method, err)
	}
	return values, nil
}

func (h *ethContractHandle) PricePerByte(ctx context.Context, caller common.Address) (*big.Int, error) {
	values, err := h.call(ctx, caller, "get_price_per_byte")
	if err != nil {
		return nil, err
	}
	price, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected get_price_per_byte result type %T", values[0])
	}
	return price, nil
}

func (h *ethContractHandle) Timestamp(ctx context.Context, caller common.Address, digest common.Hash) (int64, bool, error) {
	values, err := h.call(ctx, caller, "get_timestamp", digest)
	if err != nil {
		return 0, false, err
	}
	ts, ok := values[0].(uint64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected get_timestamp result type %T", values[0])
	}
	// The contract reports zero for digests it has no record of.
	if ts == 0 {
		return 0, false, nil
	}
	return int64(ts), true, nil
}

func (h *ethContractHandle) Stats(ctx context.Context, caller common.Address) (*ContractStats, error) {
	values, err := h.call(ctx, caller, "get_stats")
	if err != nil {
		return nil, err
	}
	count, ok1 := values[0].(uint64)
	volume, ok2 := values[1].(*big.Int)
	lastUpdated, ok3 := values[2].(uint64)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("unexpected get_stats result types")
	}
	return &ContractStats{
		TotalCount:  count,
		TotalVolume: volume,
		LastUpdated: int64(lastUpdated),
	}, nil
}

func (h *ethContractHandle) SubmitStamp(
	ctx context.Context,
	caller common.Address,
	signer Signer,
	digest common.Hash,
	size uint64,
	fee *big.Int,
) (<-chan TxStatusEvent, error) {
	if signer == nil {
		return nil, fmt.Errorf("no signer bound for %s", caller.Hex())
	}

	chainID, err := h.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't get chain id: %w", err)
	}
	nonce, err := h.client.PendingNonceAt(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("couldn't get pending nonce: %w", err)
	}
	gasPrice, err := h.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't get gas price: %w", err)
	}
	data, err := h.abi.Pack("stamp_hash_paid", digest, size)
	if err != nil {
		return nil, fmt.Errorf("couldn't pack stamp_hash_paid call: %w", err)
	}
	gasLimit, err := h.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  caller,
		To:    &h.address,
		Value: fee,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &h.address,
		Value:    fee,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := signer.SignTx(ctx, tx, chainID)
	if err != nil {
		return nil, err
	}
	if err := h.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("broadcast failed: %w", err)
	}

	events := make(chan TxStatusEvent, 4)
	events <- TxStatusEvent{State: TxStateSubmitted, TxID: signedTx.Hash()}
	go h.watchReceipt(ctx, signedTx.Hash(), events)
	return events, nil
}

// watchReceipt polls for the transaction receipt and forwards status
// notifications until a terminal one is emitted.
func (h *ethContractHandle) watchReceipt(ctx context.Context, txHash common.Hash, events chan<- TxStatusEvent) {
	defer close(events)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		receipt, err := h.client.TransactionReceipt(ctx, txHash)
		if errors.Is(err, ethereum.NotFound) {
			continue
		}
		if err != nil {
			logger.WithFields(logger.Fields{
				"tx_hash": txHash.Hex(),
				"error":   err,
			}).Debug("Receipt poll failed, retrying")
			continue
		}

		if receipt.Status == types.ReceiptStatusSuccessful {
			events <- TxStatusEvent{State: TxStateInBlock, TxID: txHash}
		} else {
			events <- TxStatusEvent{
				TxID: txHash,
				Err:  fmt.Errorf("transaction reverted in block %d", receipt.BlockNumber.Uint64()),
			}
		}
		return
	}
}

// KeystoreWalletProvider is the default WalletProvider, backed by a local
// go-ethereum keystore directory. Browser-extension style wallets implement
// the same interface.
type KeystoreWalletProvider struct {
	ks         *keystore.KeyStore
	passphrase string
}

// NewKeystoreWalletProvider opens (or creates) the keystore at dir.
func NewKeystoreWalletProvider(dir, passphrase string) *KeystoreWalletProvider {
	return &KeystoreWalletProvider{
		ks:         keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP),
		passphrase: passphrase,
	}
}

// Enable is the authorization step. A local keystore has no prompt, the
// call is logged for parity with extension wallets.
func (p *KeystoreWalletProvider) Enable(_ context.Context, appName string) error {
	logger.WithFields(logger.Fields{
		"app": appName,
	}).Debug("Keystore wallet enabled")
	return nil
}

func (p *KeystoreWalletProvider) Accounts(_ context.Context) ([]Account, error) {
	var out []Account
	for i, acc := range p.ks.Accounts() {
		out = append(out, Account{
			Address: acc.Address,
			Name:    fmt.Sprintf("Account %d", i+1),
			Source:  acc.URL.String(),
		})
	}
	return out, nil
}

func (p *KeystoreWalletProvider) Signer(_ context.Context, source string) (Signer, error) {
	for _, acc := range p.ks.Accounts() {
		if acc.URL.String() == source {
			return &keystoreSigner{ks: p.ks, account: acc, passphrase: p.passphrase}, nil
		}
	}
	return nil, fmt.Errorf("no keystore account for source %s", source)
}

type keystoreSigner struct {
	ks         *keystore.KeyStore
	account    accounts.Account
	passphrase string
}

func (s *keystoreSigner) Address() common.Address {
	return s.account.Address
}

func (s *keystoreSigner) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := s.ks.SignTxWithPassphrase(s.account, s.passphrase, tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSigningRejected, err)
	}
	return signed, nil
}

var (
	_ WalletProvider = (*KeystoreWalletProvider)(nil)
	_ Signer         = (*keystoreSigner)(nil)
	_ ChainConn      = (*ethConn)(nil)
	_ ContractHandle = (*ethContractHandle)(nil)
)
