// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreComplete(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "panelgate", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 90*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, "abcd1234", cfg.Panel.DefaultPassword)
	assert.NotEmpty(t, cfg.Panel.Selectors.LoginUser)
	assert.NotEmpty(t, cfg.Panel.Selectors.LoggedInProbe)
	assert.Equal(t, "logs", cfg.Audit.Dir)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("server.addr", ":9090")
	v.Set("browser.headless", false)
	v.Set("panel.selectors.login_user", "#user")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "#user", cfg.Panel.Selectors.LoginUser)
	// Untouched defaults survive the override.
	assert.Equal(t, "abcd1234", cfg.Panel.DefaultPassword)
}

func TestNewConfigFromViperDatabaseEnv(t *testing.T) {
	t.Setenv("PANELGATE_DATABASE_URL", "postgres://gate:pw@localhost:5432/ledger")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "postgres://gate:pw@localhost:5432/ledger", cfg.Database.URL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero navigation timeout", func(c *Config) { c.Browser.NavigationTimeout = 0 }},
		{"negative action timeout", func(c *Config) { c.Browser.ActionTimeout = -time.Second }},
		{"empty audit dir", func(c *Config) { c.Audit.Dir = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
