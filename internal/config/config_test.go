package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "conversation-queue-service", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())

	assert.Equal(t, "queue.events", cfg.Rabbit.Exchange)
	assert.Equal(t, time.Second, cfg.Rabbit.RetryDelay())

	assert.False(t, cfg.Queue.AutoAssign)
	assert.Equal(t, 5, cfg.Queue.DefaultMaxLoad)
	assert.True(t, cfg.Queue.PreserveWaitOnRequeue)
	assert.Equal(t, 5, cfg.Queue.SLACriticalMinutes)
	assert.Equal(t, 240, cfg.Queue.SLALowMinutes)
	assert.Equal(t, 24*time.Hour, cfg.Queue.PresenceTTL())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("QUEUE_AUTO_ASSIGN", "true")
	t.Setenv("QUEUE_DEFAULT_MAX_LOAD", "3")
	t.Setenv("QUEUE_PRESENCE_TTL_HOURS", "2")
	t.Setenv("AUTH_BCRYPT_COST", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.True(t, cfg.Queue.AutoAssign)
	assert.Equal(t, 3, cfg.Queue.DefaultMaxLoad)
	assert.Equal(t, 2*time.Hour, cfg.Queue.PresenceTTL())
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("QUEUE_ACCEPT_RETRIES", "not-a-number")
	t.Setenv("QUEUE_PRESERVE_WAIT_ON_REQUEUE", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Queue.AcceptRetries)
	assert.True(t, cfg.Queue.PreserveWaitOnRequeue)
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "oops")
	_, err := Load()
	assert.Error(t, err)
}
