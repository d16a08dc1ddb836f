// Package broker manages individual client connections, serializing writes
// so replies and fan-out messages from concurrent publishers never interleave.
package broker

import (
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Conn is one live client link. The broker addresses clients exclusively
// through this interface so the TCP listener and the WebSocket bridge share
// the registries and the command dispatcher. Implementations must serialize
// WriteLine calls; fan-out writes arrive from other connections' goroutines.
type Conn interface {
	// WriteLine sends one protocol line to the peer. The implementation
	// appends whatever framing its transport needs.
	WriteLine(line string) error

	RemoteAddr() net.Addr
	LocalAddr() net.Addr
	Close() error

	// ID returns a stable correlation id for log records.
	ID() string
}

// tcpConn adapts a raw net.Conn to the Conn interface with newline framing.
type tcpConn struct {
	id string
	nc net.Conn

	mu sync.Mutex
}

func newTCPConn(nc net.Conn) *tcpConn {
	return &tcpConn{id: uuid.NewString(), nc: nc}
}

func (c *tcpConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.nc.Write([]byte(line + "\n"))
	return err
}

func (c *tcpConn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }
func (c *tcpConn) LocalAddr() net.Addr  { return c.nc.LocalAddr() }
func (c *tcpConn) Close() error         { return c.nc.Close() }
func (c *tcpConn) ID() string           { return c.id }

// addrHost returns the host portion of a network address, or the whole
// address string when it has no port.
func addrHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// addrPort returns the numeric port of a network address, or 0.
func addrPort(addr net.Addr) int {
	if addr == nil {
		return 0
	}
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
