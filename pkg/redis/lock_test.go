package redis

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func unreachableClient() *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 100 * time.Millisecond,
			MaxRetries:  -1,
		}),
		logger: testLogger(),
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewClient(ctx, Config{Host: "127.0.0.1", Port: 1}, testLogger())
	assert.Error(t, err)
}

func TestNewLocker_Defaults(t *testing.T) {
	l := NewLocker(unreachableClient(), "", 0, 0)
	assert.Equal(t, "fern:", l.keyPrefix)
	assert.Equal(t, time.Minute, l.ttl)
}

func TestLocker_ConnectionErrorIsNotContention(t *testing.T) {
	client := unreachableClient()
	defer client.Close()
	l := NewLocker(client, "test:", time.Second, time.Second)

	_, err := l.Hold(context.Background(), "save:1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
}
