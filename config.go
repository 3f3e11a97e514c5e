package chainstamp

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the constructor-injected configuration of a Client.
type Config struct {
	// NetworkKey is the registry key of the network Open connects to.
	NetworkKey string `mapstructure:"network"`

	// ContractAddress is the deployed stamping contract address, bound
	// during Open when set.
	ContractAddress string `mapstructure:"contract_address"`

	// AppName is the identity presented to the wallet on authorization.
	AppName string `mapstructure:"app_name"`

	// KeystoreDir enables the default keystore wallet provider when set.
	KeystoreDir string `mapstructure:"keystore_dir"`

	// KeystorePassphrase unlocks keystore accounts for signing.
	KeystorePassphrase string `mapstructure:"keystore_passphrase"`

	// BaselinePrice is the nominal degraded-mode price per byte.
	BaselinePrice int64 `mapstructure:"baseline_price"`

	// DegradedDelay is the artificial delay before a fabricated stamp
	// resolves.
	DegradedDelay time.Duration `mapstructure:"degraded_delay"`
}

// DefaultConfig returns the config used when none is provided.
func DefaultConfig() Config {
	return Config{
		NetworkKey:    NetworkShibuya,
		AppName:       "TimeLock",
		BaselinePrice: DefaultBaselinePrice,
		DegradedDelay: DefaultDegradedDelay,
	}
}

// LoadConfig reads configuration from an optional yaml file and from
// CHAINSTAMP_* environment variables, on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("network", def.NetworkKey)
	v.SetDefault("app_name", def.AppName)
	v.SetDefault("baseline_price", def.BaselinePrice)
	v.SetDefault("degraded_delay", def.DegradedDelay)

	v.SetEnvPrefix("CHAINSTAMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("couldn't read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("couldn't unmarshal config: %w", err)
	}
	if cfg.BaselinePrice <= 0 {
		cfg.BaselinePrice = DefaultBaselinePrice
	}
	if cfg.DegradedDelay <= 0 {
		cfg.DegradedDelay = DefaultDegradedDelay
	}
	return &cfg, nil
}
