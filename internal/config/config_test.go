package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "binks-events", cfg.KafkaTopic)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, 60*time.Minute, cfg.OrderExpiry())
	assert.Zero(t, cfg.Order.ServiceFee)
	assert.False(t, cfg.CouponStrict)
	assert.Equal(t, time.Minute, cfg.ExpirySweepInterval)
	assert.Equal(t, "https://pakasir.com/api", cfg.Pakasir.BaseURL)
	assert.True(t, cfg.Pakasir.SandboxMode)
	assert.Equal(t, 15*time.Second, cfg.Pakasir.Timeout)
	assert.Equal(t, "1025", cfg.SMTP.Port)
}

func TestLoad_FromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ORDER_EXPIRY_MINUTES", "15")
	t.Setenv("ORDER_SERVICE_FEE", "2500")
	t.Setenv("COUPON_STRICT", "true")
	t.Setenv("EXPIRY_SWEEP_INTERVAL", "30s")
	t.Setenv("PAKASIR_PROJECT_SLUG", "binks")
	t.Setenv("PAKASIR_SANDBOX_MODE", "false")
	t.Setenv("PAKASIR_WEBHOOK_SECRET", "whsec")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, 15*time.Minute, cfg.OrderExpiry())
	assert.Equal(t, int64(2500), cfg.Order.ServiceFee)
	assert.True(t, cfg.CouponStrict)
	assert.Equal(t, 30*time.Second, cfg.ExpirySweepInterval)
	assert.Equal(t, "binks", cfg.Pakasir.ProjectSlug)
	assert.False(t, cfg.Pakasir.SandboxMode)
	assert.Equal(t, "whsec", cfg.Pakasir.WebhookSecret)
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("ORDER_EXPIRY_MINUTES", "0")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ORDER_EXPIRY_MINUTES", "abc")
	_, err = Load()
	assert.Error(t, err)
}

func TestConfig_ValidateAPI(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.ValidateAPI(), "required")

	cfg.JWTSecret = "short"
	assert.ErrorContains(t, cfg.ValidateAPI(), "at least 32")

	cfg.JWTSecret = strings.Repeat("x", 32)
	assert.NoError(t, cfg.ValidateAPI())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
