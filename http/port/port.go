// Package port finds free TCP ports, mostly for tests that need to bind
// a real listener.
package port

import (
	"errors"
	"net"

	"github.com/faultline-labs/faultline/trace"
)

// AvailablePort finds an available port to use for any TCP connection.
func AvailablePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, trace.WrapError(err)
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, trace.WrapError(err)
	}
	defer l.Close()

	if tcpAddr, ok := l.Addr().(*net.TCPAddr); ok {
		return tcpAddr.Port, nil
	}
	return 0, trace.WrapError(errors.New("failed type assertion"))
}
