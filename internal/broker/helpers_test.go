package broker_test

import (
	"errors"
	"net"
	"sync"

	"github.com/topichub/topichub/internal/broker"
)

// fakeConn is an in-memory broker.Conn that records written lines and can be
// switched into a failing mode to exercise delivery-failure handling.
type fakeConn struct {
	id string

	mu     sync.Mutex
	lines  []string
	fail   bool
	closed bool
}

var _ broker.Conn = (*fakeConn)(nil)

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail {
		return errors.New("write failed")
	}
	c.lines = append(c.lines, line)
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

func (c *fakeConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1999}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return nil
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) setFail(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fail = fail
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.lines...)
}

func (c *fakeConn) lastLine() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) == 0 {
		return ""
	}
	return c.lines[len(c.lines)-1]
}
