package redis

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewStoreFromClient_DoesNotOwnClient 共享连接的实例关闭时不得关闭底层连接
func TestNewStoreFromClient_DoesNotOwnClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	s := NewStoreFromClient(client)
	require.NoError(t, s.Close())

	// 连接仍由创建方持有：首次真正关闭应成功
	assert.NoError(t, client.Close())
}
