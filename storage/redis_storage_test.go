package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) *RedisStorage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	r, err := NewRedisStorage(RedisConfig{Host: host, Port: port.Port()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedisClaim(t *testing.T) {
	r := setupTestRedis(t)
	ctx := context.Background()

	claimed, err := r.Claim(ctx, "settle:r1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = r.Claim(ctx, "settle:r1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim of the same key")

	require.NoError(t, r.Release(ctx, "settle:r1"))
	claimed, err = r.Claim(ctx, "settle:r1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "released key can be claimed again")
}

func TestRedisClaimHonorsCancelledContext(t *testing.T) {
	r := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Claim(ctx, "settle:r2", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
