// Package broker implements the TopicHub broker: a TCP listener for the
// newline-delimited command protocol, the session and topic registries behind
// it, and the per-connection read loops that drive the dispatcher.
package broker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Protocol reply strings shared by several handlers.
const (
	invalidTopicReply = "[SERVER_ERROR] Invalid topic. Only letters (A-Z, a-z), " +
		"numbers (0-9), and max length of 64 are allowed."
	invalidPayloadReply = "[SERVER_ERROR] Invalid message. Only Base64 characters " +
		"(A-Z, a-z, 0-9, +, /, =) and max length of 1024 are allowed."
	invalidPublishReply = "[SERVER_ERROR] Invalid publish format! Topic or message missing."
)

// maxLineLength bounds a single protocol line. Keyword, topic, payload, and
// separators fit comfortably; anything longer is a framing error that tears
// down the offending connection only.
const maxLineLength = 64 * 1024

// Broker coordinates the registries and listeners of one TopicHub instance.
type Broker struct {
	cfg        Config
	logger     *zap.Logger
	sessions   *SessionRegistry
	topics     *TopicRegistry
	dispatcher *Dispatcher
	origins    *originChecker

	mu         sync.Mutex
	conns      map[Conn]struct{}
	listener   net.Listener
	wsListener net.Listener
	httpServer *http.Server
	closing    bool

	wg sync.WaitGroup
}

// New creates a Broker with the given configuration. A nil logger disables
// logging.
func New(cfg Config, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.Sanitize()

	b := &Broker{
		cfg:      cfg,
		logger:   logger,
		sessions: NewSessionRegistry(),
		topics:   NewTopicRegistry(logger),
		origins:  newOriginChecker(cfg.AllowedOrigins, logger),
		conns:    make(map[Conn]struct{}),
	}

	b.dispatcher = NewDispatcher(b.handleUnknown)
	b.dispatcher.Handle("CONNECT", b.handleConnect)
	b.dispatcher.Handle("DISCONNECT", b.handleDisconnect)
	b.dispatcher.Handle("SUBSCRIBE", b.handleSubscribe)
	b.dispatcher.Handle("UNSUBSCRIBE", b.handleUnsubscribe)
	b.dispatcher.Handle("PUBLISH", b.handlePublish)

	return b
}

// Listen binds the TCP listener and, when configured, the WebSocket/HTTP
// listener. It does not start serving; call Serve afterward.
func (b *Broker) Listen() error {
	listener, err := net.Listen("tcp", b.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", b.cfg.Listen, err)
	}
	b.listener = listener

	if b.cfg.WSListen != "" {
		wsListener, err := net.Listen("tcp", b.cfg.WSListen)
		if err != nil {
			listener.Close()
			return fmt.Errorf("listen %s: %w", b.cfg.WSListen, err)
		}
		b.wsListener = wsListener
		b.httpServer = &http.Server{
			Handler:     b.Routes(),
			IdleTimeout: 60 * time.Second,
		}
	}

	return nil
}

// Addr returns the bound TCP address, or nil before Listen.
func (b *Broker) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// WSAddr returns the bound WebSocket/HTTP address, or nil when the WebSocket
// access path is disabled.
func (b *Broker) WSAddr() net.Addr {
	if b.wsListener == nil {
		return nil
	}
	return b.wsListener.Addr()
}

// Serve accepts connections until the broker is shut down, spawning one
// goroutine per connection. It returns nil after a clean shutdown.
func (b *Broker) Serve() error {
	if b.httpServer != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			err := b.httpServer.Serve(b.wsListener)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				b.logger.Error("http server error", zap.Error(err))
			}
		}()
		b.logger.Info("websocket listener started", zap.String("addr", b.wsListener.Addr().String()))
	}

	b.logger.Info("broker started", zap.String("addr", b.listener.Addr().String()))

	for {
		nc, err := b.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.serveTCPConn(nc)
		}()
	}
}

// ListenAndServe binds the listeners and serves until shutdown.
func (b *Broker) ListenAndServe() error {
	if err := b.Listen(); err != nil {
		return err
	}
	return b.Serve()
}

// serveTCPConn owns one TCP connection: it frames the byte stream into
// newline-terminated command lines, buffering partial trailing lines across
// reads, and dispatches each complete line in arrival order.
func (b *Broker) serveTCPConn(nc net.Conn) {
	conn := newTCPConn(nc)
	if !b.track(conn) {
		nc.Close()
		return
	}

	b.logger.Info("connection accepted",
		zap.String("conn_id", conn.ID()),
		zap.String("remote", nc.RemoteAddr().String()))

	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	for scanner.Scan() {
		b.dispatcher.Dispatch(conn, scanner.Text())
	}

	if err := scanner.Err(); err != nil && !isExpectedCloseError(err) {
		b.logger.Warn("read error",
			zap.String("conn_id", conn.ID()),
			zap.Error(err))
	}

	b.teardown(conn, "end of stream")
	b.untrack(conn)
}

// teardown destroys whatever session the connection still has and removes it
// from every topic. The session registry is always taken before the topic
// registry; every teardown path in the broker preserves that order.
func (b *Broker) teardown(conn Conn, details string) {
	sess, registered := b.sessions.Unregister(conn)
	b.topics.DropConnection(conn)

	if registered {
		b.logAction("DISCONNECT", sess, conn, details)
	}
	conn.Close()
}

// track registers a live connection for shutdown bookkeeping. It reports
// false when the broker is already shutting down.
func (b *Broker) track(conn Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closing {
		return false
	}
	b.conns[conn] = struct{}{}
	return true
}

func (b *Broker) untrack(conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.conns, conn)
}

// Shutdown stops the listeners, closes every live connection, and waits for
// the connection goroutines to finish or the configured timeout to elapse.
func (b *Broker) Shutdown() error {
	b.logger.Info("initiating broker shutdown")

	b.mu.Lock()
	b.closing = true
	conns := make([]Conn, 0, len(b.conns))
	for conn := range b.conns {
		conns = append(conns, conn)
	}
	b.mu.Unlock()

	if b.listener != nil {
		b.listener.Close()
	}
	if b.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ShutdownTimeout)
		defer cancel()
		if err := b.httpServer.Shutdown(ctx); err != nil {
			b.logger.Warn("http server shutdown error", zap.Error(err))
		}
	}

	for _, conn := range conns {
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			b.logger.Warn("error closing connection", zap.String("conn_id", conn.ID()), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("broker shutdown completed")
		return nil
	case <-time.After(b.cfg.ShutdownTimeout):
		b.logger.Warn("broker shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

// Sessions returns the connection registry.
func (b *Broker) Sessions() *SessionRegistry { return b.sessions }

// Topics returns the topic registry.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Dispatch routes one already-framed command line on behalf of conn. The
// WebSocket bridge and tests use it directly.
func (b *Broker) Dispatch(conn Conn, line string) {
	b.dispatcher.Dispatch(conn, line)
}

// logAction records a client action with the metadata fields every broker
// log line carries.
func (b *Broker) logAction(action string, sess Session, conn Conn, details string) {
	b.logger.Info(action,
		zap.String("details", details),
		zap.String("client", sess.Name),
		zap.Int("pid", sess.PID),
		zap.String("ip", sess.RemoteHost),
		zap.Int("port", sess.RemotePort),
		zap.Int("server_port", sess.LocalPort),
		zap.String("conn_id", conn.ID()))
}

func (b *Broker) reply(conn Conn, line string) {
	if err := conn.WriteLine(line); err != nil && !isExpectedCloseError(err) {
		b.logger.Warn("reply failed", zap.String("conn_id", conn.ID()), zap.Error(err))
	}
}

// handleConnect parses "CONNECT <serverPort> <clientName> <pid>" and
// registers a session. Malformed arguments are logged and otherwise ignored;
// the connection stays open and unregistered.
func (b *Broker) handleConnect(conn Conn, args string) {
	var (
		serverPort int
		name       string
		pid        int
	)
	if n, err := fmt.Sscanf(args, "%d %s %d", &serverPort, &name, &pid); err != nil || n != 3 {
		b.logAction("CONNECTION_ERROR", b.sessions.Lookup(conn), conn, "client connect message is malformed")
		return
	}

	sess := b.sessions.Register(conn, name, pid)
	b.logAction("CONNECT", sess, conn, "success")
	b.reply(conn, "[SERVER] Connected as "+sess.Name)
}

// handleDisconnect destroys the session, removes the connection from every
// topic, replies, and closes the connection. A DISCONNECT from an
// unregistered connection is a no-op.
func (b *Broker) handleDisconnect(conn Conn, _ string) {
	sess, ok := b.sessions.Unregister(conn)
	if !ok {
		return
	}

	b.topics.DropConnection(conn)
	b.logAction("DISCONNECT", sess, conn, "success")
	b.reply(conn, "[SERVER] Disconnected")
	conn.Close()
}

func (b *Broker) handleSubscribe(conn Conn, args string) {
	topic, result := b.topics.Subscribe(args, conn)
	switch result {
	case InvalidTopic:
		b.reply(conn, invalidTopicReply)
	case AlreadySubscribed:
		b.reply(conn, "[SERVER] Already subscribed to "+topic)
	case Subscribed:
		b.logAction("SUBSCRIBE", b.sessions.Lookup(conn), conn, "Topic: "+topic)
		b.reply(conn, "[SERVER] Subscribed to "+topic)
	}
}

func (b *Broker) handleUnsubscribe(conn Conn, args string) {
	topic, result := b.topics.Unsubscribe(args, conn)
	switch result {
	case UnsubscribeInvalidTopic:
		b.reply(conn, invalidTopicReply)
	case NotSubscribed:
		b.reply(conn, "[SERVER_ERROR] You are not subscribed to "+topic)
	case Unsubscribed:
		b.logAction("UNSUBSCRIBE", b.sessions.Lookup(conn), conn, topic)
		b.reply(conn, "[SERVER] Unsubscribed from "+topic)
	}
}

// handlePublish splits the argument into topic and payload at the first
// space and fans the formatted message out to the topic's subscribers.
func (b *Broker) handlePublish(conn Conn, args string) {
	space := strings.IndexByte(args, ' ')
	if space < 0 {
		b.reply(conn, invalidPublishReply)
		return
	}

	topic, delivered, result := b.topics.Publish(args[:space], args[space+1:])
	switch result {
	case PublishInvalidTopic:
		b.reply(conn, invalidTopicReply)
	case InvalidPayload:
		b.reply(conn, invalidPayloadReply)
	case NoSubscribers:
		b.reply(conn, "[SERVER_ERROR] No subscribers for topic: "+topic)
	case Delivered:
		b.logAction("PUBLISH", b.sessions.Lookup(conn), conn,
			fmt.Sprintf("Topic: %s Delivered: %d", topic, delivered))
	}
}

func (b *Broker) handleUnknown(conn Conn, keyword string) {
	b.reply(conn, "[SERVER_ERROR] Unknown command: "+keyword)
}
