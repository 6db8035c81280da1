package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"das.dev/verifier/core"
	"das.dev/verifier/types"
)

type Config struct {
	Network    string           `json:"network" mapstructure:"network"`
	DataDir    string           `json:"data_dir" mapstructure:"data_dir"`
	Log        LogConfig        `json:"log" mapstructure:"log"`
	Scripts    ScriptsConfig    `json:"scripts" mapstructure:"scripts"`
	SubAccount SubAccountConfig `json:"sub_account" mapstructure:"sub_account"`

	// Quote is the CKB price in USD micro-units (1 USD = 1_000_000).
	Quote uint64 `json:"quote" mapstructure:"quote"`
}

type LogConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// ScriptsConfig holds the code hashes (0x hex) the scripts use to recognise
// each other's cells.
type ScriptsConfig struct {
	DasLock           string `json:"das_lock" mapstructure:"das_lock"`
	AccountCellType   string `json:"account_cell_type" mapstructure:"account_cell_type"`
	SubAccountCell    string `json:"sub_account_cell_type" mapstructure:"sub_account_cell_type"`
	DeviceKeyListType string `json:"device_key_list_type" mapstructure:"device_key_list_type"`
}

type SubAccountConfig struct {
	BasicCapacity         uint64 `json:"basic_capacity" mapstructure:"basic_capacity"`
	NewSubAccountPrice    uint64 `json:"new_sub_account_price" mapstructure:"new_sub_account_price"`
	RenewSubAccountPrice  uint64 `json:"renew_sub_account_price" mapstructure:"renew_sub_account_price"`
	CommonFee             uint64 `json:"common_fee" mapstructure:"common_fee"`
	ExpirationGracePeriod uint64 `json:"expiration_grace_period" mapstructure:"expiration_grace_period"`
	MinAccountLength      int    `json:"min_account_length" mapstructure:"min_account_length"`
	MaxAccountLength      int    `json:"max_account_length" mapstructure:"max_account_length"`
	DevSkipSignature      bool   `json:"dev_skip_signature" mapstructure:"dev_skip_signature"`

	// DasProfitRate is the share of custom-rule revenue owed to DAS, out of
	// RateBase.
	DasProfitRate uint64 `json:"das_profit_rate" mapstructure:"das_profit_rate"`
}

// RateBase is the denominator of DasProfitRate.
const RateBase = 10_000

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".das-verifier"
	}
	return filepath.Join(home, ".das-verifier")
}

func DefaultConfig() Config {
	return Config{
		Network: "devnet",
		DataDir: DefaultDataDir(),
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Scripts: ScriptsConfig{
			DasLock:           "0x" + strings.Repeat("11", 32),
			AccountCellType:   "0x" + strings.Repeat("22", 32),
			SubAccountCell:    "0x" + strings.Repeat("33", 32),
			DeviceKeyListType: "0x" + strings.Repeat("44", 32),
		},
		SubAccount: SubAccountConfig{
			BasicCapacity:         200 * core.OneCKB,
			NewSubAccountPrice:    1 * core.OneCKB,
			RenewSubAccountPrice:  1 * core.OneCKB,
			CommonFee:             10_000,
			ExpirationGracePeriod: 90 * core.Day,
			MinAccountLength:      1,
			MaxAccountLength:      42,
			DasProfitRate:         1_500,
		},
		Quote: 1_000,
	}
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log.level %q", cfg.Log.Level)
	}
	for name, h := range map[string]string{
		"scripts.das_lock":              cfg.Scripts.DasLock,
		"scripts.account_cell_type":     cfg.Scripts.AccountCellType,
		"scripts.sub_account_cell_type": cfg.Scripts.SubAccountCell,
		"scripts.device_key_list_type":  cfg.Scripts.DeviceKeyListType,
	} {
		if _, err := types.ParseCodeHash(h); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	sa := cfg.SubAccount
	if sa.MinAccountLength <= 0 {
		return errors.New("sub_account.min_account_length must be > 0")
	}
	if sa.MaxAccountLength < sa.MinAccountLength {
		return errors.New("sub_account.max_account_length must be >= min_account_length")
	}
	if sa.NewSubAccountPrice == 0 {
		return errors.New("sub_account.new_sub_account_price must be > 0")
	}
	if sa.DasProfitRate > RateBase {
		return fmt.Errorf("sub_account.das_profit_rate must be <= %d", RateBase)
	}
	if cfg.Quote == 0 {
		return errors.New("quote must be > 0")
	}
	return nil
}

// Load reads path (json, yaml or toml by extension) over the defaults and
// applies DAS_* environment overrides, e.g. DAS_SUB_ACCOUNT_COMMON_FEE. An
// empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix("DAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("network", d.Network)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
	v.SetDefault("scripts.das_lock", d.Scripts.DasLock)
	v.SetDefault("scripts.account_cell_type", d.Scripts.AccountCellType)
	v.SetDefault("scripts.sub_account_cell_type", d.Scripts.SubAccountCell)
	v.SetDefault("scripts.device_key_list_type", d.Scripts.DeviceKeyListType)
	v.SetDefault("sub_account.basic_capacity", d.SubAccount.BasicCapacity)
	v.SetDefault("sub_account.new_sub_account_price", d.SubAccount.NewSubAccountPrice)
	v.SetDefault("sub_account.renew_sub_account_price", d.SubAccount.RenewSubAccountPrice)
	v.SetDefault("sub_account.common_fee", d.SubAccount.CommonFee)
	v.SetDefault("sub_account.expiration_grace_period", d.SubAccount.ExpirationGracePeriod)
	v.SetDefault("sub_account.min_account_length", d.SubAccount.MinAccountLength)
	v.SetDefault("sub_account.max_account_length", d.SubAccount.MaxAccountLength)
	v.SetDefault("sub_account.dev_skip_signature", d.SubAccount.DevSkipSignature)
	v.SetDefault("sub_account.das_profit_rate", d.SubAccount.DasProfitRate)
	v.SetDefault("quote", d.Quote)
}

// Script builds a type-hash script for one of the configured code hashes.
func Script(codeHash string) types.Script {
	h, _ := types.ParseCodeHash(codeHash)
	return types.Script{CodeHash: h, HashType: types.HashTypeType}
}
