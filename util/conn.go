package util

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// ShrinkReadBuffer sets the kernel receive buffer on an accepted socket
// to one byte. The tarpit never reads, so anything the client sends
// backs up on the client's side instead of sitting in our kernel.
// Non-TCP connections are left alone.
func ShrinkReadBuffer(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tc.SetReadBuffer(1)
}

// IsClosed returns true for errors that just mean the connection is
// gone: EOF, resets from the remote, and writes against a socket we
// closed ourselves during eviction or shutdown.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
