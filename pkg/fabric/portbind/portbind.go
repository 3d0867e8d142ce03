// Package portbind finds a free loopback port within a reserved range and
// hands back the bound listener.
package portbind

import (
	"fmt"
	"net"
	"strconv"

	"github.com/ctxbridge/ctxbridge/pkg/fabric/fabriperr"
)

// loopbackHost is the only interface the fabric is permitted to bind to.
// Binding to any other interface, including 0.0.0.0, is a security
// regression.
const loopbackHost = "127.0.0.1"

// Bind tries preferredPort first (when non-zero), then base, base+1, ...,
// base+width-1 in order, and returns the first successfully bound loopback
// listener. If every port in the range is already in use, it returns
// fabriperr.ErrPortExhausted.
func Bind(preferredPort, base, width int) (net.Listener, int, error) {
	if preferredPort != 0 {
		if ln, err := bindOne(preferredPort); err == nil {
			return ln, preferredPort, nil
		}
	}

	for port := base; port < base+width; port++ {
		if port == preferredPort {
			continue
		}
		ln, err := bindOne(port)
		if err == nil {
			return ln, port, nil
		}
	}

	return nil, 0, fmt.Errorf("%w: no free port in %d-%d", fabriperr.ErrPortExhausted, base, base+width-1)
}

func bindOne(port int) (net.Listener, error) {
	addr := net.JoinHostPort(loopbackHost, strconv.Itoa(port))
	return net.Listen("tcp", addr)
}
