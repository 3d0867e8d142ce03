package portbind

import (
	"errors"
	"net"
	"strconv"
	"testing"

	"github.com/ctxbridge/ctxbridge/pkg/fabric/fabriperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBind_FirstPortFree(t *testing.T) {
	ln, port, err := Bind(0, freeBase(t), 10)
	require.NoError(t, err)
	defer ln.Close()
	assert.NotZero(t, port)
	assert.Equal(t, "127.0.0.1", ln.Addr().(*net.TCPAddr).IP.String())
}

func TestBind_SkipsOccupiedPort(t *testing.T) {
	base := freeBase(t)

	occupied, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", itoa(base)))
	require.NoError(t, err)
	defer occupied.Close()

	ln, port, err := Bind(base, base, 10)
	require.NoError(t, err)
	defer ln.Close()
	assert.NotEqual(t, base, port)
}

func TestBind_ExhaustedRangeReturnsPortExhausted(t *testing.T) {
	base := freeBase(t)

	var held []net.Listener
	for i := 0; i < 3; i++ {
		ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", itoa(base+i)))
		require.NoError(t, err)
		held = append(held, ln)
	}
	defer func() {
		for _, ln := range held {
			ln.Close()
		}
	}()

	_, _, err := Bind(0, base, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fabriperr.ErrPortExhausted))
}

// freeBase picks a port number likely to be free by binding to port 0 and
// reading back what the OS assigned, then releasing it immediately.
func freeBase(t *testing.T) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
