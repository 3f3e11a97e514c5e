package chainstamp

import (
	"fmt"
	"strings"
)

// Built-in network keys.
const (
	NetworkLocal   = "local"
	NetworkShibuya = "shibuya"
	NetworkAstar   = "astar"
	NetworkRococo  = "rococo"
)

// builtinNetworks is the static network table, ordered the way it is
// presented to callers.
var builtinNetworks = []Network{
	{
		Key:      NetworkLocal,
		Name:     "Local Node",
		Endpoint: "ws://127.0.0.1:9944",
		Explorer: "",
	},
	{
		Key:      NetworkShibuya,
		Name:     "Shibuya Testnet",
		Endpoint: "wss://shibuya-rpc.dwellir.com",
		Explorer: "https://shibuya.subscan.io",
	},
	{
		Key:      NetworkAstar,
		Name:     "Astar Mainnet",
		Endpoint: "wss://astar-rpc.dwellir.com",
		Explorer: "https://astar.subscan.io",
	},
	{
		Key:      NetworkRococo,
		Name:     "Rococo Testnet",
		Endpoint: "wss://rococo-rpc.polkadot.io",
		Explorer: "https://rococo.subscan.io",
	},
}

// NetworkRegistry is a static table of named networks. It is pure data:
// lookups have no side effects and the only failure mode is an unknown key.
type NetworkRegistry struct {
	ordered []Network
	byKey   map[string]Network
}

// NewNetworkRegistry returns a registry holding the built-in networks plus
// any extra networks the caller provides. Extra networks with a key that
// collides with a built-in one override it in place.
func NewNetworkRegistry(extra ...Network) *NetworkRegistry {
	r := &NetworkRegistry{
		byKey: map[string]Network{},
	}
	for _, n := range builtinNetworks {
		r.ordered = append(r.ordered, n)
		r.byKey[n.Key] = n
	}
	for _, n := range extra {
		n.Key = normalizeNetworkKey(n.Key)
		if _, exists := r.byKey[n.Key]; exists {
			for i := range r.ordered {
				if r.ordered[i].Key == n.Key {
					r.ordered[i] = n
					break
				}
			}
		} else {
			r.ordered = append(r.ordered, n)
		}
		r.byKey[n.Key] = n
	}
	return r
}

// Networks returns all registered networks in registration order.
func (r *NetworkRegistry) Networks() []Network {
	out := make([]Network, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Get looks up a network by key.
func (r *NetworkRegistry) Get(key string) (Network, error) {
	n, ok := r.byKey[normalizeNetworkKey(key)]
	if !ok {
		return Network{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, key)
	}
	return n, nil
}

func normalizeNetworkKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// ExplorerTxURL builds a block-explorer link for a transaction id, or an
// empty string when the network has no explorer.
func ExplorerTxURL(network Network, txID string) string {
	if network.Explorer == "" {
		return ""
	}
	return fmt.Sprintf("%s/extrinsic/%s", strings.TrimRight(network.Explorer, "/"), txID)
}
