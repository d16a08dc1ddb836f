package client_test

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/topichub/topichub/internal/client"
)

func newTestConsole(t *testing.T) (*client.Console, *client.Session, *safeBuffer, *fakeBroker) {
	t.Helper()

	fb := startFakeBroker(t)
	out := &safeBuffer{}
	session := client.NewSession(out)
	t.Cleanup(session.Close)
	console := client.NewConsole(session, out)

	return console, session, out, fb
}

// TestProcessUnknownCommand verifies that unrecognized input prints the
// command overview.
func TestProcessUnknownCommand(t *testing.T) {
	console, _, out, _ := newTestConsole(t)

	console.Process("HELLO there")
	if !strings.Contains(out.String(), "Invalid command! Use:") {
		t.Errorf("output = %q, want usage text", out.String())
	}
}

// TestProcessEmptyInput verifies that blank input also prints the overview.
func TestProcessEmptyInput(t *testing.T) {
	console, _, out, _ := newTestConsole(t)

	console.Process("   ")
	if !strings.Contains(out.String(), "Invalid command! Use:") {
		t.Errorf("output = %q, want usage text", out.String())
	}
}

// TestConnectArgumentShapes verifies both accepted CONNECT forms and the
// arity error.
func TestConnectArgumentShapes(t *testing.T) {
	console, session, out, fb := newTestConsole(t)

	console.Process("CONNECT")
	if !strings.Contains(out.String(), "Invalid CONNECT command.") {
		t.Errorf("output = %q, want CONNECT usage", out.String())
	}

	console.Process(fmt.Sprintf("CONNECT 127.0.0.1 %s alice", fb.port()))
	fb.expectLine(t, fmt.Sprintf("CONNECT %s alice %d", fb.port(), os.Getpid()))
	if !session.Connected() {
		t.Fatal("three-argument CONNECT did not establish a connection")
	}
	session.Disconnect()

	console.Process(fmt.Sprintf("CONNECT %s bob", fb.port()))

	// The DISCONNECT and the new CONNECT travel over different connections,
	// so their arrival order is not fixed.
	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case line := <-fb.lines:
			got[line] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("broker received %v, want DISCONNECT and the new CONNECT", got)
		}
	}
	if !got["DISCONNECT"] || !got[fmt.Sprintf("CONNECT %s bob %d", fb.port(), os.Getpid())] {
		t.Errorf("broker received %v, want DISCONNECT and the new CONNECT", got)
	}
}

// TestConsoleCommandPassThrough verifies that subscription and publish
// commands are forwarded on the wire as typed.
func TestConsoleCommandPassThrough(t *testing.T) {
	console, session, _, fb := newTestConsole(t)

	if err := session.Connect("127.0.0.1", fb.port(), "alice"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	fb.expectLine(t, fmt.Sprintf("CONNECT %s alice %d", fb.port(), os.Getpid()))

	console.Process("SUBSCRIBE weather")
	fb.expectLine(t, "SUBSCRIBE weather")

	console.Process("UNSUBSCRIBE weather")
	fb.expectLine(t, "UNSUBSCRIBE weather")

	console.Process("PUBLISH weather 73F and sunny")
	fb.expectLine(t, "PUBLISH weather 73F and sunny")
}

// TestConsoleArityErrors verifies the per-command usage messages.
func TestConsoleArityErrors(t *testing.T) {
	console, _, out, _ := newTestConsole(t)

	console.Process("SUBSCRIBE")
	if !strings.Contains(out.String(), "Usage: SUBSCRIBE <topic>") {
		t.Errorf("output = %q, want SUBSCRIBE usage", out.String())
	}

	console.Process("UNSUBSCRIBE a b")
	if !strings.Contains(out.String(), "Invalid UNSUBSCRIBE command.") {
		t.Errorf("output = %q, want UNSUBSCRIBE usage", out.String())
	}

	console.Process("PUBLISH weather")
	if !strings.Contains(out.String(), "Invalid PUBLISH command.") {
		t.Errorf("output = %q, want PUBLISH usage", out.String())
	}
}

// TestRunExit verifies that the local exit command stops the loop, sends a
// best-effort DISCONNECT, and prints the exit banner.
func TestRunExit(t *testing.T) {
	console, session, out, fb := newTestConsole(t)

	if err := session.Connect("127.0.0.1", fb.port(), "alice"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	fb.expectLine(t, fmt.Sprintf("CONNECT %s alice %d", fb.port(), os.Getpid()))

	console.Run(strings.NewReader("SUBSCRIBE weather\nexit\nPUBLISH weather ignored\n"))

	fb.expectLine(t, "SUBSCRIBE weather")
	fb.expectLine(t, "DISCONNECT")
	if !strings.Contains(out.String(), "Exiting client...") {
		t.Errorf("output = %q, want exit banner", out.String())
	}
	if session.Connected() {
		t.Error("Connected() = true after exit")
	}
}
