package chainstamp

import (
	"time"
)

func defaultClock() time.Time { return time.Now() }

// Option configures a Client.
type Option func(*Client)

// WithChainDialer sets a custom chain dialer for testing or alternative
// transports.
func WithChainDialer(dialer ChainDialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

// WithWalletProvider sets the wallet/session collaborator. Overrides the
// keystore provider derived from config.
func WithWalletProvider(provider WalletProvider) Option {
	return func(c *Client) {
		c.wallet = provider
	}
}

// WithStampStore sets a custom stamp store (e.g. the redis-backed one) for
// history and the degraded-mode last-digest slot.
func WithStampStore(store StampStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithNetworkRegistry sets a custom network registry.
func WithNetworkRegistry(registry *NetworkRegistry) Option {
	return func(c *Client) {
		c.registry = registry
	}
}

// WithExtraNetworks registers additional networks on top of the built-in
// table.
func WithExtraNetworks(networks ...Network) Option {
	return func(c *Client) {
		c.registry = NewNetworkRegistry(networks...)
	}
}

// WithClock sets the time source used for degraded-mode oscillation and
// fabricated timestamps.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}
