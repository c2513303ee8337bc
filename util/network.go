package util

import (
	"fmt"
	"net"
	"strconv"
)

// Address families accepted by Listen.
const (
	FamilyAny  = "any"
	FamilyIPv4 = "ipv4"
	FamilyIPv6 = "ipv6"
)

// ListenNetwork maps an address family to the network string
// net.Listen expects. Unknown families fall back to dual-stack.
func ListenNetwork(family string) string {
	switch family {
	case FamilyIPv4:
		return "tcp4"
	case FamilyIPv6:
		return "tcp6"
	default:
		return "tcp"
	}
}

// Listen opens a TCP listener on addr restricted to the given family.
func Listen(family, addr string) (net.Listener, error) {
	return net.Listen(ListenNetwork(family), addr)
}

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
