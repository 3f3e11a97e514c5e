package chainstamp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/KyberNetwork/logger"
)

// ConnectionManager owns the single live connection to a network. Replacing
// the connection always retires the previous live handle first, there are
// never two live handles for one manager.
//
// Connection failures are non-fatal: callers retry explicitly, there is no
// automatic reconnection loop.
type ConnectionManager struct {
	mu sync.Mutex

	registry *NetworkRegistry
	dialer   ChainDialer

	network   Network
	conn      ChainConn
	connected atomic.Bool

	// onTeardown is invoked whenever the live handle is retired, before any
	// new connection is established. The client uses it to drop the bound
	// contract instance, which is only valid while its connection lives.
	onTeardown func()

	// onSwitch is invoked when the connection moves to a different network.
	// The client uses it to discard the whole contract binding, since
	// contract addresses are network-scoped.
	onSwitch func()
}

// NewConnectionManager creates a manager over the given registry and dialer.
func NewConnectionManager(registry *NetworkRegistry, dialer ChainDialer) *ConnectionManager {
	return &ConnectionManager{
		registry: registry,
		dialer:   dialer,
	}
}

// SetTeardownHook registers a hook called whenever the live handle is
// retired. Must be called before the first Connect.
func (cm *ConnectionManager) SetTeardownHook(hook func()) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onTeardown = hook
}

// SetSwitchHook registers a hook called when the connection moves to a
// different network, before the old handle is retired.
func (cm *ConnectionManager) SetSwitchHook(hook func()) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onSwitch = hook
}

// Connect establishes a connection to the given network. Any existing
// connection is retired first. On failure no partial connection is left
// behind and the manager reports not connected.
func (cm *ConnectionManager) Connect(ctx context.Context, network Network) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.connectLocked(ctx, network)
}

func (cm *ConnectionManager) connectLocked(ctx context.Context, network Network) error {
	cm.teardownLocked()

	conn, err := cm.dialer(ctx, network)
	if err != nil {
		logger.WithFields(logger.Fields{
			"network":  network.Name,
			"endpoint": network.Endpoint,
			"error":    err,
		}).Error("Connecting to network failed")
		return fmt.Errorf("%w: network %s: %s", ErrConnectionFailed, network.Name, err)
	}

	cm.network = network
	cm.conn = conn
	cm.connected.Store(true)

	logger.WithFields(logger.Fields{
		"network":  network.Name,
		"endpoint": network.Endpoint,
	}).Info("Connected to network")
	return nil
}

// SwitchNetwork resolves key and reconnects to that network. Switching to
// the currently connected network is a no-op. An unknown key fails with
// ErrUnknownNetwork and leaves the current connection untouched. Teardown of
// the old connection is best effort, a switch is never blocked on cleanup.
func (cm *ConnectionManager) SwitchNetwork(ctx context.Context, key string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	network, err := cm.registry.Get(key)
	if err != nil {
		return err
	}

	if cm.connected.Load() && cm.network.Endpoint == network.Endpoint {
		return nil
	}

	logger.WithFields(logger.Fields{
		"from": cm.network.Name,
		"to":   network.Name,
	}).Info("Switching network")

	if cm.onSwitch != nil {
		cm.onSwitch()
	}
	return cm.connectLocked(ctx, network)
}

// Disconnect retires the live handle. Idempotent, a no-op when not connected.
func (cm *ConnectionManager) Disconnect() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.teardownLocked()
}

// teardownLocked retires the current live handle best effort. Close errors
// are logged and swallowed.
func (cm *ConnectionManager) teardownLocked() {
	if cm.conn == nil {
		return
	}
	if cm.onTeardown != nil {
		cm.onTeardown()
	}
	if err := cm.conn.Close(); err != nil {
		logger.WithFields(logger.Fields{
			"network": cm.network.Name,
			"error":   err,
		}).Warn("Closing previous connection failed, proceeding anyway")
	}
	cm.conn = nil
	cm.connected.Store(false)
	logger.WithFields(logger.Fields{
		"network": cm.network.Name,
	}).Info("Disconnected from network")
}

// IsConnected returns the current liveness flag. This is a level-triggered
// poll target, not an edge-triggered event stream.
func (cm *ConnectionManager) IsConnected() bool {
	return cm.connected.Load()
}

// Conn returns the live handle, or nil when not connected.
func (cm *ConnectionManager) Conn() ChainConn {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.conn
}

// CurrentNetwork returns the network of the current (or last) connection.
func (cm *ConnectionManager) CurrentNetwork() Network {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.network
}
