// plugin/fluidpay/config.go
package fluidpay

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// PluginName keys the fluidpay entry in the service config's plugin.plugin_configs.
const PluginName = "fluidpay"

// PluginConfig is the on-disk form of Params.
type PluginConfig struct {
	Owner          string   `mapstructure:"owner"`
	Upkeep         string   `mapstructure:"upkeep"`
	UsdcAddress    string   `mapstructure:"usdc_address"`
	UsdcAavePool   string   `mapstructure:"usdc_aave_pool"`
	SwapRouter     string   `mapstructure:"pancake_swap_router"`
	AcceptedTokens []string `mapstructure:"accepted_tokens"`
	FeeBps         uint64   `mapstructure:"fee_bps"`
	SlippageBps    uint64   `mapstructure:"slippage_bps"`
	SweepThreshold string   `mapstructure:"sweep_threshold"`
}

var configKeys = []string{
	"owner",
	"upkeep",
	"usdc_address",
	"usdc_aave_pool",
	"pancake_swap_router",
	"accepted_tokens",
	"fee_bps",
	"slippage_bps",
	"sweep_threshold",
}

// LoadConfig reads fluidpay.{yaml,json,...} from basePath, the working
// directory or /etc/fluidpay. Every key can be overridden with FLUIDPAY_<KEY>;
// FLUIDPAY_ACCEPTED_TOKENS takes a comma separated list.
func LoadConfig(basePath string) (*PluginConfig, error) {
	v := viper.New()
	v.SetConfigName("fluidpay")

	// Add config paths in order of precedence
	if basePath != "" {
		v.AddConfigPath(basePath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/fluidpay")

	// Enable environment variable overrides
	v.SetEnvPrefix("FLUIDPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	v.SetDefault("sweep_threshold", "0")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config PluginConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// DecodePluginConfig decodes the fluidpay entry of the service config's
// plugin.plugin_configs map.
func DecodePluginConfig(raw map[string]interface{}) (*PluginConfig, error) {
	var config PluginConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode plugin config: %w", err)
	}
	return &config, nil
}

// Params converts the raw configuration, rejecting malformed addresses and numbers.
func (c PluginConfig) Params() (Params, error) {
	var p Params
	var err error
	if p.Owner, err = parseAddress("owner", c.Owner); err != nil {
		return Params{}, err
	}
	if p.Upkeep, err = parseAddress("upkeep", c.Upkeep); err != nil {
		return Params{}, err
	}
	if p.Stablecoin, err = parseAddress("usdc_address", c.UsdcAddress); err != nil {
		return Params{}, err
	}
	if p.LendingPool, err = parseAddress("usdc_aave_pool", c.UsdcAavePool); err != nil {
		return Params{}, err
	}
	if p.SwapRouter, err = parseAddress("pancake_swap_router", c.SwapRouter); err != nil {
		return Params{}, err
	}
	for _, raw := range c.AcceptedTokens {
		token, err := parseAddress("accepted_tokens", raw)
		if err != nil {
			return Params{}, err
		}
		p.AcceptedTokens = append(p.AcceptedTokens, token)
	}
	p.FeeBps = c.FeeBps
	p.SlippageBps = c.SlippageBps

	threshold := strings.TrimSpace(c.SweepThreshold)
	if threshold == "" {
		threshold = "0"
	}
	t, ok := new(big.Int).SetString(threshold, 10)
	if !ok {
		return Params{}, fmt.Errorf("%w: sweep_threshold %q is not an integer", ErrConfiguration, c.SweepThreshold)
	}
	p.SweepThreshold = t

	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Address{}, fmt.Errorf("%w: %s is required", ErrConfiguration, field)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not a hex address", ErrConfiguration, field, raw)
	}
	return common.HexToAddress(raw), nil
}
