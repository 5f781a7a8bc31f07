package instance

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPortBindable_FreePort(t *testing.T) {
	// Grab a random free port, release it, and confirm it reads as bindable.
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	assert.True(t, isPortBindable(port))
}

func TestIsPortBindable_PortInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	assert.False(t, isPortBindable(port))
}

func TestRedisURL(t *testing.T) {
	url := RedisURL(6379)
	assert.Contains(t, url, "redis://")
	assert.Contains(t, url, fmt.Sprintf(":%d", 6379))
}
