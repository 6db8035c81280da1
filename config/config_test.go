package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfigOK(t *testing.T) {
	require.NoError(t, ValidateConfig(DefaultConfig()))
}

func TestValidateConfigRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"empty network":   func(c *Config) { c.Network = " " },
		"empty data dir":  func(c *Config) { c.DataDir = "" },
		"bad log level":   func(c *Config) { c.Log.Level = "verbose" },
		"bad code hash":   func(c *Config) { c.Scripts.DasLock = "0x1234" },
		"zero min length": func(c *Config) { c.SubAccount.MinAccountLength = 0 },
		"max below min":   func(c *Config) { c.SubAccount.MaxAccountLength = 0 },
		"zero new price":  func(c *Config) { c.SubAccount.NewSubAccountPrice = 0 },
		"zero quote":      func(c *Config) { c.Quote = 0 },
		"rate over base":  func(c *Config) { c.SubAccount.DasProfitRate = RateBase + 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, ValidateConfig(cfg))
		})
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "das.json")
	body := `{"network":"testnet","data_dir":"` + filepath.ToSlash(dir) + `","sub_account":{"max_account_length":20}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("DAS_SUB_ACCOUNT_COMMON_FEE", "777")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "testnet", cfg.Network)
	assert.Equal(t, 20, cfg.SubAccount.MaxAccountLength)
	assert.Equal(t, uint64(777), cfg.SubAccount.CommonFee)
	assert.Equal(t, DefaultConfig().SubAccount.NewSubAccountPrice, cfg.SubAccount.NewSubAccountPrice)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
