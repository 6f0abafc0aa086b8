package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/vultisig/fluidpay/storage"
)

const (
	ModeEVM = "evm"
	ModeSim = "sim"
)

type Config struct {
	Server struct {
		Host     string `mapstructure:"host" json:"host,omitempty"`
		Port     int64  `mapstructure:"port" json:"port,omitempty"`
		Database struct {
			DSN string `mapstructure:"dsn" json:"dsn,omitempty"`
		} `mapstructure:"database" json:"database,omitempty"`
		// Mode selects the chain backend: evm talks to an RPC node, sim runs in memory.
		Mode           string `mapstructure:"mode" json:"mode,omitempty"`
		BaseConfigPath string `mapstructure:"base_config_path" json:"base_config_path,omitempty"`
	} `mapstructure:"server" json:"server"`

	Eth struct {
		Rpc        string `mapstructure:"rpc" json:"rpc,omitempty"`
		ChainID    int64  `mapstructure:"chain_id" json:"chain_id,omitempty"`
		PrivateKey string `mapstructure:"private_key" json:"-"`
		// Deadline is the swap deadline in seconds.
		Deadline int64 `mapstructure:"deadline" json:"deadline,omitempty"`
	} `mapstructure:"eth" json:"eth,omitempty"`

	Plugin struct {
		PluginConfigs map[string]map[string]interface{} `mapstructure:"plugin_configs" json:"plugin_configs,omitempty"`
	} `mapstructure:"plugin" json:"plugin,omitempty"`

	Redis storage.RedisConfig `mapstructure:"redis" json:"redis,omitempty"`

	Datadog struct {
		Host string `mapstructure:"host" json:"host,omitempty"`
		Port string `mapstructure:"port" json:"port,omitempty"`
	} `mapstructure:"datadog" json:"datadog"`

	Upkeep struct {
		Schedule string `mapstructure:"schedule" json:"schedule,omitempty"`
		// Address is the caller the scheduler sweeps as.
		Address string `mapstructure:"address" json:"address,omitempty"`
	} `mapstructure:"upkeep" json:"upkeep,omitempty"`

	Archive storage.ArchiveConfig `mapstructure:"archive" json:"archive,omitempty"`

	Sim struct {
		// Rates maps token address to stablecoin units per smallest input unit.
		Rates map[string]int64 `mapstructure:"rates" json:"rates,omitempty"`
		// Faucet maps token address to the amount minted to every new caller.
		Faucet map[string]int64 `mapstructure:"faucet" json:"faucet,omitempty"`
	} `mapstructure:"sim" json:"sim,omitempty"`
}

func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

func GetConfigure() (*Config, error) {
	configName := os.Getenv("FP_CONFIG_NAME")
	if configName == "" {
		configName = "config"
	}

	return ReadConfig(configName)
}

func ReadConfig(configName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", ModeEVM)
	v.SetDefault("eth.deadline", 1200)
	v.SetDefault("upkeep.schedule", "@every 15m")
	v.SetDefault("archive.prefix", "settlements")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fail to reading config file, %w", err)
	}
	var cfg Config
	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	switch cfg.Server.Mode {
	case ModeEVM, ModeSim:
	default:
		return nil, fmt.Errorf("unknown server mode %q", cfg.Server.Mode)
	}
	return &cfg, nil
}
