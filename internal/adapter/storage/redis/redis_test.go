package redis

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"vending-gateway/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisConfig(addr string) config.RedisConfig {
	host, port := splitAddr(addr)
	return config.RedisConfig{Enabled: true, Host: host, Port: port}
}

func splitAddr(addr string) (string, int) {
	host, p, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(p)
	return host, port
}

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := NewClient(context.Background(), testRedisConfig(s.Addr()), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	hc := NewHealthCheck(client)
	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err := NewClient(context.Background(), testRedisConfig(addr), zerolog.Nop())
	assert.Error(t, err)
}

func TestHealthCheck_WritesCanaryKey(t *testing.T) {
	s := miniredis.RunT(t)
	client, err := NewClient(context.Background(), testRedisConfig(s.Addr()), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, NewHealthCheck(client).Ping(context.Background()))
	assert.True(t, s.Exists(canaryKey))
	assert.Greater(t, s.TTL(canaryKey), time.Duration(0))
}

func TestHealthCheck_ServerDown(t *testing.T) {
	s := miniredis.RunT(t)
	client, err := NewClient(context.Background(), testRedisConfig(s.Addr()), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	s.Close()
	err = NewHealthCheck(client).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing canary key")
}
