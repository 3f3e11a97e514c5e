package chainstamp

import (
	"context"
	"fmt"
	"sync"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
)

// SessionManager binds the wallet session: account discovery, active-account
// selection and the signing capability. The active-account pointer and the
// bound signer are always updated together under one lock, they never
// disagree.
type SessionManager struct {
	mu sync.RWMutex

	provider WalletProvider

	accounts []Account
	active   *Account
	signer   Signer
}

// NewSessionManager creates a session manager over the given wallet provider.
func NewSessionManager(provider WalletProvider) *SessionManager {
	return &SessionManager{provider: provider}
}

// RequestAccounts triggers the wallet authorization prompt for appIdentity
// and enumerates the exposed accounts. The first account becomes active and
// its signer is bound. Fails with ErrNoAccountsAvailable when the wallet
// exposes no accounts after authorization.
func (sm *SessionManager) RequestAccounts(ctx context.Context, appIdentity string) ([]Account, error) {
	if err := sm.provider.Enable(ctx, appIdentity); err != nil {
		return nil, fmt.Errorf("wallet authorization failed: %w", err)
	}

	accounts, err := sm.provider.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing wallet accounts failed: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w after authorization of %s", ErrNoAccountsAvailable, appIdentity)
	}

	signer, err := sm.provider.Signer(ctx, accounts[0].Source)
	if err != nil {
		return nil, fmt.Errorf("binding signer for %s failed: %w", accounts[0].Address.Hex(), err)
	}

	sm.mu.Lock()
	sm.accounts = accounts
	sm.active = &accounts[0]
	sm.signer = signer
	sm.mu.Unlock()

	logger.WithFields(logger.Fields{
		"accounts": len(accounts),
		"active":   accounts[0].Address.Hex(),
	}).Info("Wallet session established")

	return accounts, nil
}

// SwitchAccount re-binds the signer to a different already-known account.
// It does not re-enumerate accounts; switching to an account outside the
// session fails.
func (sm *SessionManager) SwitchAccount(ctx context.Context, account Account) error {
	sm.mu.RLock()
	var known *Account
	for i := range sm.accounts {
		if sm.accounts[i].Address == account.Address {
			known = &sm.accounts[i]
			break
		}
	}
	sm.mu.RUnlock()

	if known == nil {
		return fmt.Errorf("account %s is not part of the session", account.Address.Hex())
	}

	signer, err := sm.provider.Signer(ctx, known.Source)
	if err != nil {
		return fmt.Errorf("binding signer for %s failed: %w", known.Address.Hex(), err)
	}

	sm.mu.Lock()
	sm.active = known
	sm.signer = signer
	sm.mu.Unlock()

	logger.WithFields(logger.Fields{
		"active": known.Address.Hex(),
	}).Info("Switched active account")
	return nil
}

// ActiveAddress returns the active account's address, or false when no
// wallet session exists.
func (sm *SessionManager) ActiveAddress() (common.Address, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.active == nil {
		return common.Address{}, false
	}
	return sm.active.Address, true
}

// Accounts returns the accounts discovered during RequestAccounts.
func (sm *SessionManager) Accounts() []Account {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]Account, len(sm.accounts))
	copy(out, sm.accounts)
	return out
}

// Signer returns the bound signing capability. Fails with ErrNotConnected
// when there is no active account.
func (sm *SessionManager) Signer() (Signer, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.active == nil || sm.signer == nil {
		return nil, fmt.Errorf("%w: no active wallet account", ErrNotConnected)
	}
	return sm.signer, nil
}

// Clear drops the session: accounts, active pointer and signer together.
func (sm *SessionManager) Clear() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.accounts = nil
	sm.active = nil
	sm.signer = nil
}
