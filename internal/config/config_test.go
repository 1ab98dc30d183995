package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.AWSRegion)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 48*time.Hour, cfg.TTLWindow)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ORDERS_TABLE", "orders-dev")
	t.Setenv("ORDER_LOCK_TTL", "3s")
	t.Setenv("RUN_LOCAL", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "orders-dev", cfg.OrdersTable)
	assert.Equal(t, 3*time.Second, cfg.LockTTL)
	assert.True(t, cfg.RunLocal)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("ORDER_LOCK_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateServer(), "secret is required")

	cfg.JWTSecret = "s"
	cfg.QueueURL = "http://localhost:4566/000000000000/orders"
	assert.NoError(t, cfg.ValidateServer())
}
