package broker_test

import (
	"testing"

	"github.com/topichub/topichub/internal/broker"
)

// TestParseCommand verifies the keyword/argument split at the first space.
func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		keyword string
		args    string
	}{
		{"SUBSCRIBE news", "SUBSCRIBE", "news"},
		{"PUBLISH weather 73F and sunny", "PUBLISH", "weather 73F and sunny"},
		{"DISCONNECT", "DISCONNECT", ""},
		{"CONNECT 1999 bob 42", "CONNECT", "1999 bob 42"},
		{"", "", ""},
		{"  leading", "", " leading"},
	}

	for _, tt := range tests {
		got := broker.ParseCommand(tt.line)
		if got.Keyword != tt.keyword || got.Args != tt.args {
			t.Errorf("ParseCommand(%q) = (%q, %q), want (%q, %q)",
				tt.line, got.Keyword, got.Args, tt.keyword, tt.args)
		}
	}
}

// TestDispatcherRouting verifies that a registered keyword reaches its
// handler with the argument remainder.
func TestDispatcherRouting(t *testing.T) {
	var gotArgs string
	dispatcher := broker.NewDispatcher(nil)
	dispatcher.Handle("SUBSCRIBE", func(_ broker.Conn, args string) {
		gotArgs = args
	})

	dispatcher.Dispatch(newFakeConn("a"), "SUBSCRIBE news now")
	if gotArgs != "news now" {
		t.Errorf("handler args = %q, want %q", gotArgs, "news now")
	}
}

// TestDispatcherUnknown verifies that unregistered keywords fall through to
// the unknown handler. Keywords are case-sensitive.
func TestDispatcherUnknown(t *testing.T) {
	var gotKeyword string
	dispatcher := broker.NewDispatcher(func(_ broker.Conn, keyword string) {
		gotKeyword = keyword
	})
	dispatcher.Handle("SUBSCRIBE", func(broker.Conn, string) {
		t.Error("handler invoked for non-matching keyword")
	})

	dispatcher.Dispatch(newFakeConn("a"), "subscribe news")
	if gotKeyword != "subscribe" {
		t.Errorf("unknown keyword = %q, want %q", gotKeyword, "subscribe")
	}
}
