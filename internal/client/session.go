// Package client maintains the interactive client's single broker
// connection: dialing, the background reader, and the guarded send path that
// every outbound command funnels through.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
)

// Session holds at most one outstanding broker connection. All mutation of
// the connection state happens under one lock, shared with the send path.
type Session struct {
	out io.Writer

	// dial and pid are swappable for tests.
	dial func(network, address string) (net.Conn, error)
	pid  int

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	readerWG  sync.WaitGroup
}

// NewSession creates a client session that prints received lines and status
// messages to out.
func NewSession(out io.Writer) *Session {
	return &Session{
		out:  out,
		dial: net.Dial,
		pid:  os.Getpid(),
	}
}

// Connected reports whether the session currently holds a connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connected
}

// Connect dials the broker and sends the wire CONNECT command with this
// process's pid. A Connect while already connected is refused with a warning
// and leaves the existing connection untouched.
func (s *Session) Connect(host, port, name string) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		fmt.Fprintln(s.out, "[WARNING] Already connected")
		return nil
	}
	s.mu.Unlock()

	conn, err := s.dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		fmt.Fprintf(s.out, "[CONNECT] (failed) [%s (%d) %s %s] (%v)\n", name, s.pid, host, port, err)
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	if err := s.Send(fmt.Sprintf("CONNECT %s %s %d", port, name, s.pid)); err != nil {
		s.cleanup()
		return err
	}

	fmt.Fprintf(s.out, "[CONNECT] (success) [%s (%d) %s %s]\n", name, s.pid, host, port)

	s.readerWG.Add(1)
	go func() {
		defer s.readerWG.Done()
		s.readLoop(conn)
	}()

	return nil
}

// readLoop prints every line received from the broker verbatim. On end of
// stream or a read error it tears down local state without notifying the
// broker.
func (s *Session) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fmt.Fprintln(s.out, scanner.Text())
	}

	if err := scanner.Err(); err == nil {
		fmt.Fprintln(s.out, "[DISCONNECT] Server closed the connection.")
	}
	s.cleanup()
}

// ErrNotConnected is returned by Send when no connection is established.
var ErrNotConnected = errors.New("not connected to any server")

// Send writes one command line to the broker. It reports an error and drops
// the command when not currently connected.
func (s *Session) Send(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected || s.conn == nil {
		fmt.Fprintln(s.out, "ERROR: Not connected to any server.")
		return ErrNotConnected
	}
	if command == "" {
		return nil
	}

	if _, err := s.conn.Write([]byte(command + "\n")); err != nil {
		fmt.Fprintln(s.out, "[ERROR] Failed to send command. Connection lost.")
		s.closeLocked()
		return err
	}
	return nil
}

// Disconnect sends DISCONNECT (best effort) and tears down the connection.
func (s *Session) Disconnect() {
	_ = s.Send("DISCONNECT")
	s.cleanup()
	fmt.Fprintln(s.out, "[DISCONNECT] Client manually disconnected.")
}

// Close tears down the connection without sending anything and waits for the
// background reader to finish.
func (s *Session) Close() {
	s.cleanup()
	s.readerWG.Wait()
}

func (s *Session) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected = false
}
