package uart

import (
	"errors"
	"io"
	"sync"
	"time"
)

var ErrDisconnected = errors.New("uart: loopback disconnected")

// Loopback is an in-memory Driver whose line is wired back on itself:
// every byte sent on a transport it opened becomes available to Receive.
// It is meant for tests and for exercising code without hardware.
type Loopback struct {
	mu        sync.Mutex
	line      []byte
	arrived   chan struct{}
	down      bool
	sendLimit int

	opens, closes   int
	sends, receives int
}

func NewLoopback() *Loopback {
	return &Loopback{arrived: make(chan struct{}), sendLimit: -1}
}

func (l *Loopback) Open(id string, cfg Config) (Transport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.down {
		return nil, ErrDisconnected
	}
	l.opens++
	return &loopbackPort{lb: l, poll: cfg.pollInterval(), closed: make(chan struct{})}, nil
}

// Inject places p on the line as if a peer had sent it.
func (l *Loopback) Inject(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.push(p)
}

// push must be called with mu held.
func (l *Loopback) push(p []byte) {
	if len(p) == 0 {
		return
	}
	l.line = append(l.line, p...)
	close(l.arrived)
	l.arrived = make(chan struct{})
}

// Disconnect drops the line: pending and future I/O fails with
// io.EOF and Open fails until Reconnect.
func (l *Loopback) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.down = true
	l.line = nil
	close(l.arrived)
	l.arrived = make(chan struct{})
}

func (l *Loopback) Reconnect() {
	l.mu.Lock()
	l.down = false
	l.mu.Unlock()
}

// SetSendLimit caps how many bytes a single Send accepts. A negative
// limit removes the cap.
func (l *Loopback) SetSendLimit(n int) {
	l.mu.Lock()
	l.sendLimit = n
	l.mu.Unlock()
}

func (l *Loopback) Opens() int    { l.mu.Lock(); defer l.mu.Unlock(); return l.opens }
func (l *Loopback) Closes() int   { l.mu.Lock(); defer l.mu.Unlock(); return l.closes }
func (l *Loopback) Sends() int    { l.mu.Lock(); defer l.mu.Unlock(); return l.sends }
func (l *Loopback) Receives() int { l.mu.Lock(); defer l.mu.Unlock(); return l.receives }

// Pending returns the number of bytes on the line not yet received.
func (l *Loopback) Pending() int { l.mu.Lock(); defer l.mu.Unlock(); return len(l.line) }

type loopbackPort struct {
	lb        *Loopback
	poll      time.Duration
	closed    chan struct{}
	closeOnce sync.Once
}

func (p *loopbackPort) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *loopbackPort) Send(b []byte) (int, error) {
	l := p.lb
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sends++
	switch {
	case p.isClosed():
		return 0, ErrClosed
	case l.down:
		return 0, io.EOF
	}
	n := len(b)
	if l.sendLimit >= 0 && n > l.sendLimit {
		n = l.sendLimit
	}
	l.push(b[:n])
	return n, nil
}

func (p *loopbackPort) Receive(b []byte) (int, error) {
	l := p.lb
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	counted := false
	for {
		l.mu.Lock()
		if !counted {
			l.receives++
			counted = true
		}
		switch {
		case p.isClosed():
			l.mu.Unlock()
			return 0, ErrClosed
		case l.down:
			l.mu.Unlock()
			return 0, io.EOF
		case len(l.line) > 0:
			n := copy(b, l.line)
			l.line = l.line[n:]
			l.mu.Unlock()
			return n, nil
		}
		arrived := l.arrived
		l.mu.Unlock()

		if timer == nil {
			timer = time.NewTimer(p.poll)
		}
		select {
		case <-arrived:
		case <-p.closed:
		case <-timer.C:
			return 0, nil
		}
	}
}

func (p *loopbackPort) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.lb.mu.Lock()
		p.lb.closes++
		p.lb.mu.Unlock()
	})
	return nil
}
