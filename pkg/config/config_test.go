package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wc-analytics/pkg/calculator"
)

var keys = []string{
	"WC_ANALYTICS_DSN", "TABLE_PREFIX", "ORDER_STATUSES", "MAX_ROWS", "TIMEZONE",
	"HTTP_ADDRESS", "CORS_ORIGINS", "LOG_LEVEL", "LOG_DEVELOPMENT", "GATEWAY_TITLES",
	"CARD_KEYWORDS", "REFERRAL_FRIEND_DISCOUNT", "REFERRAL_REFERRER_REWARD",
	"REFERRAL_REWARD_VALIDITY_DAYS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "wp_", cfg.TablePrefix)
	assert.Equal(t, []string{"wc-completed", "wc-processing"}, cfg.Statuses())
	assert.Equal(t, 1000000, cfg.MaxRows)
	assert.Equal(t, ":8080", cfg.Address)
	assert.Nil(t, cfg.Keywords())
	assert.Empty(t, cfg.Titles())
	assert.Equal(t, []string{"*"}, cfg.Origins())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	ref, err := cfg.Referral()
	require.NoError(t, err)
	assert.Equal(t, "10", ref.FriendDiscount.String())
	assert.Equal(t, 60*24*time.Hour, ref.RewardValidity)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
WC_ANALYTICS_DSN=sqlite:///tmp/shop.db
TABLE_PREFIX=shop_
TIMEZONE=Europe/Rome
GATEWAY_TITLES=bacs:Bank transfer, paypal:PayPal ,broken
CARD_KEYWORDS=visa, mastercard
REFERRAL_FRIEND_DISCOUNT=12.5
REFERRAL_REWARD_VALIDITY_DAYS=30
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/shop.db", cfg.DSN)
	assert.Equal(t, "shop_", cfg.TablePrefix)
	assert.Equal(t, calculator.TitleMap{"bacs": "Bank transfer", "paypal": "PayPal"}, cfg.Titles())
	assert.Equal(t, []string{"visa", "mastercard"}, cfg.Keywords())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Rome", loc.String())

	ref, err := cfg.Referral()
	require.NoError(t, err)
	assert.Equal(t, "12.5", ref.FriendDiscount.String())
	assert.Equal(t, "10", ref.ReferrerReward.String())
	assert.Equal(t, 30*24*time.Hour, ref.RewardValidity)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("REFERRAL_REFERRER_REWARD", "ten")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
