package rabbitmq

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_URL(t *testing.T) {
	tests := []struct {
		name     string
		vhost    string
		expected string
	}{
		{name: "root vhost", vhost: "/", expected: "amqp://guest:pass@mq:5672/"},
		{name: "empty vhost", vhost: "", expected: "amqp://guest:pass@mq:5672/"},
		{name: "named vhost", vhost: "metrics", expected: "amqp://guest:pass@mq:5672/metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{User: "guest", Password: "pass", Host: "mq", Port: 5672, VHost: tt.vhost}
			assert.Equal(t, tt.expected, cfg.URL())
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoffDelay(0, 0, 0))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(0, 0, 2))
	assert.Equal(t, 50*time.Millisecond, backoffDelay(50*time.Millisecond, 3, 0))
	assert.Equal(t, 450*time.Millisecond, backoffDelay(50*time.Millisecond, 3, 2))
}

func TestPublishWithRetry_NotConnected(t *testing.T) {
	c := &Client{config: &Config{}, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := c.PublishWithRetry(context.Background(), []byte(`{}`), "application/json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
	assert.False(t, c.IsConnected())
}
