package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/habits")
	t.Setenv("JWT_SECRET", "secret")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.LoginCodeTTL)
	assert.True(t, cfg.RemindersEnabled)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.TelegramEnabled())
}

func TestFromEnvRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvWebhookSecretRequiredWithBot(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_WEBHOOK_SECRET", "")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvLoginCodeTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("LOGIN_CODE_TTL", "60s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.LoginCodeTTL)

	t.Setenv("LOGIN_CODE_TTL", "soon")
	_, err = FromEnv()
	assert.Error(t, err)
}
