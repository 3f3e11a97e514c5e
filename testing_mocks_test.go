package chainstamp

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ============================================================
// Mock Implementations
// ============================================================

// mockChainConn implements ChainConn for testing
type mockChainConn struct {
	mu sync.Mutex

	// Function hooks - set these to customize behavior
	BindContractFn func(address string) (ContractHandle, error)
	BalanceAtFn    func(addr common.Address) (*big.Int, error)
	CloseFn        func() error

	// Call tracking for assertions
	BindContractCalls []string
	BalanceAtCalls    []common.Address
	CloseCalls        int
}

func (m *mockChainConn) BindContract(_ context.Context, address string) (ContractHandle, error) {
	m.mu.Lock()
	m.BindContractCalls = append(m.BindContractCalls, address)
	m.mu.Unlock()
	if m.BindContractFn != nil {
		return m.BindContractFn(address)
	}
	return &mockContractHandle{}, nil
}

func (m *mockChainConn) BalanceAt(_ context.Context, addr common.Address) (*big.Int, error) {
	m.mu.Lock()
	m.BalanceAtCalls = append(m.BalanceAtCalls, addr)
	m.mu.Unlock()
	if m.BalanceAtFn != nil {
		return m.BalanceAtFn(addr)
	}
	return big.NewInt(0), nil
}

func (m *mockChainConn) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	m.mu.Unlock()
	if m.CloseFn != nil {
		return m.CloseFn()
	}
	return nil
}

func (m *mockChainConn) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CloseCalls
}

// mockDialer builds a ChainDialer that hands out the given connections in
// order and records the networks it was asked to dial.
type mockDialer struct {
	mu sync.Mutex

	DialFn func(network Network) (ChainConn, error)

	DialCalls []Network
	conns     []*mockChainConn
}

func (m *mockDialer) dial(_ context.Context, network Network) (ChainConn, error) {
	m.mu.Lock()
	m.DialCalls = append(m.DialCalls, network)
	m.mu.Unlock()
	if m.DialFn != nil {
		return m.DialFn(network)
	}
	conn := &mockChainConn{}
	m.mu.Lock()
	m.conns = append(m.conns, conn)
	m.mu.Unlock()
	return conn, nil
}

func (m *mockDialer) dialCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.DialCalls)
}

// mockContractHandle implements ContractHandle for testing
type mockContractHandle struct {
	mu sync.Mutex

	PricePerByteFn func(caller common.Address) (*big.Int, error)
	TimestampFn    func(caller common.Address, digest common.Hash) (int64, bool, error)
	StatsFn        func(caller common.Address) (*ContractStats, error)
	SubmitStampFn  func(caller common.Address, signer Signer, digest common.Hash, size uint64, fee *big.Int) (<-chan TxStatusEvent, error)

	PricePerByteCalls int
	TimestampCalls    []common.Hash
	StatsCalls        int
	SubmitStampCalls  []struct {
		Digest common.Hash
		Size   uint64
		Fee    *big.Int
	}
}

func (m *mockContractHandle) PricePerByte(_ context.Context, caller common.Address) (*big.Int, error) {
	m.mu.Lock()
	m.PricePerByteCalls++
	m.mu.Unlock()
	if m.PricePerByteFn != nil {
		return m.PricePerByteFn(caller)
	}
	return big.NewInt(500), nil
}

func (m *mockContractHandle) Timestamp(_ context.Context, caller common.Address, digest common.Hash) (int64, bool, error) {
	m.mu.Lock()
	m.TimestampCalls = append(m.TimestampCalls, digest)
	m.mu.Unlock()
	if m.TimestampFn != nil {
		return m.TimestampFn(caller, digest)
	}
	return 0, false, nil
}

func (m *mockContractHandle) Stats(_ context.Context, caller common.Address) (*ContractStats, error) {
	m.mu.Lock()
	m.StatsCalls++
	m.mu.Unlock()
	if m.StatsFn != nil {
		return m.StatsFn(caller)
	}
	return &ContractStats{TotalVolume: big.NewInt(0)}, nil
}

func (m *mockContractHandle) SubmitStamp(
	_ context.Context,
	caller common.Address,
	signer Signer,
	digest common.Hash,
	size uint64,
	fee *big.Int,
) (<-chan TxStatusEvent, error) {
	m.mu.Lock()
	m.SubmitStampCalls = append(m.SubmitStampCalls, struct {
		Digest common.Hash
		Size   uint64
		Fee    *big.Int
	}{digest, size, fee})
	m.mu.Unlock()
	if m.SubmitStampFn != nil {
		return m.SubmitStampFn(caller, signer, digest, size, fee)
	}
	events := make(chan TxStatusEvent, 2)
	events <- TxStatusEvent{State: TxStateSubmitted, TxID: digest}
	events <- TxStatusEvent{State: TxStateInBlock, TxID: digest}
	close(events)
	return events, nil
}

// mockSigner implements Signer for testing
type mockSigner struct {
	addr     common.Address
	SignTxFn func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

func (m *mockSigner) Address() common.Address {
	return m.addr
}

func (m *mockSigner) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if m.SignTxFn != nil {
		return m.SignTxFn(tx, chainID)
	}
	return tx, nil
}

// mockWalletProvider implements WalletProvider for testing
type mockWalletProvider struct {
	mu sync.Mutex

	EnableFn   func(appName string) error
	AccountsFn func() ([]Account, error)
	SignerFn   func(source string) (Signer, error)

	EnableCalls []string
	SignerCalls []string
}

func (m *mockWalletProvider) Enable(_ context.Context, appName string) error {
	m.mu.Lock()
	m.EnableCalls = append(m.EnableCalls, appName)
	m.mu.Unlock()
	if m.EnableFn != nil {
		return m.EnableFn(appName)
	}
	return nil
}

func (m *mockWalletProvider) Accounts(_ context.Context) ([]Account, error) {
	if m.AccountsFn != nil {
		return m.AccountsFn()
	}
	return []Account{
		{Address: testAddr(1), Name: "Alice", Source: "mock://1"},
		{Address: testAddr(2), Name: "Bob", Source: "mock://2"},
	}, nil
}

func (m *mockWalletProvider) Signer(_ context.Context, source string) (Signer, error) {
	m.mu.Lock()
	m.SignerCalls = append(m.SignerCalls, source)
	m.mu.Unlock()
	if m.SignerFn != nil {
		return m.SignerFn(source)
	}
	return &mockSigner{}, nil
}

// ============================================================
// Test Helpers
// ============================================================

func testAddr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func testDigest(b byte) common.Hash {
	return common.BytesToHash([]byte{0xd1, b})
}

// fixedClock returns a Clock pinned to the given instant.
func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

// testNetwork is a throwaway network entry for connection tests.
func testNetwork(key string) Network {
	return Network{
		Key:      key,
		Name:     "Test " + key,
		Endpoint: "ws://test/" + key,
	}
}

const testContractAddress = "0x00000000000000000000000000000000000000aa"

// newBoundContractClient returns a ContractClient with an instance already
// bound to the given handle.
func newBoundContractClient(t *testing.T, handle ContractHandle) *ContractClient {
	t.Helper()
	conn := &mockChainConn{
		BindContractFn: func(string) (ContractHandle, error) { return handle, nil },
	}
	cc := NewContractClient(defaultClock)
	cc.Bind(context.Background(), conn, testContractAddress)
	if cc.Instance() == nil {
		t.Fatal("contract instance was not bound")
	}
	return cc
}
