package realtime

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeTimer struct {
	s       *fakeScheduler
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeScheduler never fires on its own; tests call FireNext.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (s *fakeScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *fakeScheduler) LastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return 0
	}
	return s.timers[len(s.timers)-1].d
}

// FireNext runs the oldest pending timer on the calling goroutine.
func (s *fakeScheduler) FireNext() bool {
	s.mu.Lock()
	var next *fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	s.mu.Unlock()

	if next == nil {
		return false
	}
	next.f()
	return true
}

var errDialRefused = errors.New("connection refused")

// fakeDialer fails the first `failures` dials, then hands out fake sockets.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	calls    int
	sockets  []*fakeSocket
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failures < 0 || d.calls <= d.failures {
		return nil, errDialRefused
	}
	s := newFakeSocket()
	d.sockets = append(d.sockets, s)
	return s, nil
}

func (d *fakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) Socket(i int) *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sockets[i]
}

type fakeSocket struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []any
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{frames: make(chan []byte, 16), done: make(chan struct{})}
}

func (s *fakeSocket) ReadMessage() ([]byte, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.done:
		return nil, errors.New("socket closed")
	}
}

func (s *fakeSocket) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, v)
	return nil
}

func (s *fakeSocket) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeSocket) Written() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.written...)
}

func (s *fakeSocket) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
