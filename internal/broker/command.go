// Package broker parses protocol lines into commands and routes them to the
// registered handler for their keyword.
package broker

import "strings"

// Command is one parsed protocol line: a case-sensitive keyword and the
// untouched remainder of the line. Handlers that need finer structure (such
// as PUBLISH's topic/payload split) perform it themselves.
type Command struct {
	Keyword string
	Args    string
}

// ParseCommand splits a line at the first space. A line without a space is
// all keyword; the arguments are empty.
func ParseCommand(line string) Command {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return Command{Keyword: line[:i], Args: line[i+1:]}
	}
	return Command{Keyword: line}
}

// HandlerFunc processes one command's arguments on behalf of a connection.
type HandlerFunc func(conn Conn, args string)

// Dispatcher maps command keywords to handlers. It holds no per-connection
// state; commands are accepted syntactically regardless of whether the
// connection has registered a session.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	unknown  func(conn Conn, keyword string)
}

// NewDispatcher creates a dispatcher that invokes unknown for keywords
// without a registered handler.
func NewDispatcher(unknown func(conn Conn, keyword string)) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		unknown:  unknown,
	}
}

// Handle registers a handler for a keyword, replacing any previous one.
func (d *Dispatcher) Handle(keyword string, handler HandlerFunc) {
	d.handlers[keyword] = handler
}

// Dispatch parses line and invokes the matching handler, or the unknown
// fallback when the keyword has none.
func (d *Dispatcher) Dispatch(conn Conn, line string) {
	cmd := ParseCommand(line)
	if handler, ok := d.handlers[cmd.Keyword]; ok {
		handler(conn, cmd.Args)
		return
	}
	if d.unknown != nil {
		d.unknown(conn, cmd.Keyword)
	}
}
