package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("bus down") }

func TestEmit_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Emit(context.Background(), failingPublisher{}, logger, New(SnippetDeleted, "snip_1", nil))

	assert.Contains(t, buf.String(), "failed to publish event")
	assert.Contains(t, buf.String(), "bus down")
}

func TestEmit_NilPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, logger, New(UserUpgraded, "user_1", nil))
	})
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, p.Publish(context.Background(), New(UserUpgraded, "user_1", map[string]string{"orderId": "42"})))
	assert.Contains(t, buf.String(), "user.upgraded")
	assert.Contains(t, buf.String(), "user_1")
}

func TestRedisPublisher_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := NewRedisPublisher(ctx, RedisConfig{Addr: addr, Channel: "codecraft.test"})
	require.NoError(t, err)
	defer p.Close()

	sub := p.Subscribe(ctx)
	defer sub.Close()
	_, err = sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, New(SnippetDeleted, "snip_9", map[string]string{"owner": "user_a"})))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, SnippetDeleted, got.Type)
	assert.Equal(t, "snip_9", got.Subject)
	assert.Equal(t, "user_a", got.Data["owner"])
}
