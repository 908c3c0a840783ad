package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"roomservice-agent/internal/logger"
)

// Policy bounds automatic reconnects.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// KioskPolicy is the reconnect policy for kiosk sockets.
func KioskPolicy() Policy {
	return Policy{Interval: 3000 * time.Millisecond, MaxAttempts: 5}
}

// StaffPolicy backs off longer and gives up sooner than the kiosk policy.
func StaffPolicy() Policy {
	return Policy{Interval: 5000 * time.Millisecond, MaxAttempts: 3}
}

// Handlers receive connection events. Every field is optional.
// Callbacks are serialized; they must not call Connect, SetURL or Disconnect synchronously.
type Handlers struct {
	OnOpen    func()
	OnMessage func(Message)
	OnClose   func()
	OnError   func(error)
}

// Option configures a Conn.
type Option func(*Conn)

func WithPolicy(p Policy) Option {
	return func(c *Conn) { c.policy = p }
}

func WithDialer(d Dialer) Option {
	return func(c *Conn) { c.dialer = d }
}

func WithScheduler(s Scheduler) Option {
	return func(c *Conn) { c.scheduler = s }
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *Conn) { c.dialTimeout = d }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Conn) { c.log = l }
}

// Conn owns a single websocket and reconnects it with a bounded number of attempts.
type Conn struct {
	policy      Policy
	dialer      Dialer
	scheduler   Scheduler
	dialTimeout time.Duration
	handlers    Handlers
	log         *log.Logger

	mu        sync.Mutex
	url       string
	socket    Socket
	gen       uint64 // bumped whenever the current socket is replaced
	connected bool
	attempt   int
	timer     Timer
	closed    bool

	deliverMu sync.Mutex
}

// New creates a Conn. It does not dial until Connect is called.
func New(url string, handlers Handlers, opts ...Option) *Conn {
	c := &Conn{
		url:         url,
		handlers:    handlers,
		policy:      KioskPolicy(),
		scheduler:   clockScheduler{},
		dialTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = NewWebsocketDialer(c.dialTimeout)
	}
	if c.log == nil {
		c.log = logger.With("component", "realtime")
	}
	return c
}

// Connect opens the socket, replacing any previous one and cancelling a pending reconnect.
func (c *Conn) Connect() {
	c.mu.Lock()
	c.closed = false
	c.stopTimerLocked()
	prev := c.detachLocked()
	c.gen++
	gen, url := c.gen, c.url
	c.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	c.dial(gen, url)
}

// SetURL re-targets the connection. A changed URL resets the attempt counter and reconnects.
func (c *Conn) SetURL(url string) {
	c.mu.Lock()
	if url == c.url {
		c.mu.Unlock()
		return
	}
	c.url = url
	c.attempt = 0
	c.mu.Unlock()
	c.Connect()
}

// Disconnect closes the socket and cancels any pending reconnect.
// No handler is invoked after Disconnect returns.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	prev := c.detachLocked()
	c.gen++
	c.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	// Wait out a callback that is already running.
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
}

func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Conn) ReconnectAttempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

func (c *Conn) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// SendMessage writes v as JSON. When the socket is not open it logs a warning and returns.
func (c *Conn) SendMessage(v any) {
	c.mu.Lock()
	sock, open := c.socket, c.connected
	c.mu.Unlock()

	if !open || sock == nil {
		c.log.Warn("socket is not open, message not sent")
		return
	}
	if err := sock.WriteJSON(v); err != nil {
		c.log.Warn("failed to send message", "err", err)
	}
}

func (c *Conn) dial(gen uint64, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout)
	sock, err := c.dialer.Dial(ctx, url)
	cancel()

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		if sock != nil {
			_ = sock.Close()
		}
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.log.Warn("socket dial failed", "url", url, "err", err)
		c.deliver(gen, func() {
			if c.handlers.OnError != nil {
				c.handlers.OnError(err)
			}
		})
		c.handleClose(gen)
		return
	}
	c.socket = sock
	c.connected = true
	c.attempt = 0
	c.mu.Unlock()

	c.log.Info("socket connected", "url", url)
	c.deliver(gen, func() {
		if c.handlers.OnOpen != nil {
			c.handlers.OnOpen()
		}
	})
	go c.readLoop(gen, sock)
}

func (c *Conn) readLoop(gen uint64, sock Socket) {
	for {
		data, err := sock.ReadMessage()
		if err != nil {
			if c.isCurrent(gen) {
				c.log.Info("socket closed", "err", err)
			}
			c.handleClose(gen)
			return
		}

		msg, err := ParseMessage(data)
		if err != nil {
			c.log.Warn("dropping frame", "err", err)
			continue
		}
		c.deliver(gen, func() {
			if c.handlers.OnMessage != nil {
				c.handlers.OnMessage(msg)
			}
		})
	}
}

// handleClose runs once per socket generation, for both dial failures and dropped sockets.
func (c *Conn) handleClose(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	sock := c.detachLocked()
	c.mu.Unlock()

	if sock != nil {
		_ = sock.Close()
	}
	c.deliver(gen, func() {
		if c.handlers.OnClose != nil {
			c.handlers.OnClose()
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	if c.attempt >= c.policy.MaxAttempts {
		c.log.Warn("max reconnection attempts reached", "max", c.policy.MaxAttempts)
		return
	}
	c.attempt++
	c.stopTimerLocked()
	c.timer = c.scheduler.AfterFunc(c.policy.Interval, func() { c.reconnect(gen) })
	c.log.Info("reconnect scheduled", "attempt", c.attempt, "max", c.policy.MaxAttempts, "in", c.policy.Interval)
}

func (c *Conn) reconnect(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.gen++
	next, url := c.gen, c.url
	c.mu.Unlock()

	c.dial(next, url)
}

// deliver runs f unless the generation was superseded or the Conn was disconnected.
func (c *Conn) deliver(gen uint64, f func()) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	if !c.isCurrent(gen) {
		return
	}
	f()
}

func (c *Conn) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && gen == c.gen
}

func (c *Conn) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Conn) detachLocked() Socket {
	sock := c.socket
	c.socket = nil
	c.connected = false
	return sock
}
