package redis

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	host, portStr, _ := strings.Cut(mr.Addr(), ":")
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := Connect(context.Background(), Config{Host: host, Port: port}, time.Second)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, portStr, _ := strings.Cut(mr.Addr(), ":")
	port, _ := strconv.Atoi(portStr)
	mr.Close()

	_, err := Connect(context.Background(), Config{Host: host, Port: port}, 200*time.Millisecond)
	assert.Error(t, err)
}
