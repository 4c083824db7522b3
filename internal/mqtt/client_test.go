package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/drawmap/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, "drawmap/ready", cfg.Topic)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.PublishTimeout)
}

func TestConfigWithDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{Broker: "tcp://broker:1883", PublishTimeout: time.Second}.withDefaults()
	assert.Equal(t, "drawmap", cfg.ClientID)
	assert.Equal(t, time.Second, cfg.PublishTimeout)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 5*time.Minute, cfg.MaxReconnectDelay)
	assert.Empty(t, cfg.Topic)
	assert.Zero(t, cfg.ReconnectCooldown)
}

func TestNewClient_RequiresBroker(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestClient_PublishWhenDisconnected(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Broker: "tcp://127.0.0.1:1"}, nil, nil)
	require.NoError(t, err)
	assert.False(t, c.IsConnected())

	err = c.Publish(t.Context(), "t", "{}")
	require.ErrorIs(t, err, ErrNotConnected)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
	c.Disconnect()
}

func TestClient_ConnectRejectsInvalidBroker(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Broker: "tcp://:1883"}, nil, nil)
	require.NoError(t, err)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
}

func TestClient_ConnectCooldown(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Broker: "tcp://:1883", ReconnectCooldown: time.Hour}, nil, nil)
	require.NoError(t, err)

	require.Error(t, c.Connect(t.Context()))
	err = c.Connect(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too recent")
}
