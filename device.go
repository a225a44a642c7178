package uart

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ReadCallback receives data in push mode. data is only valid for the
// duration of the call. A non-okay Status reports why delivery stopped
// and comes with nil data.
//
// Callbacks run on the Device's receive goroutine while the Device lock
// is held. They must return quickly and must not call Read, Write or
// Close on the same Device.
type ReadCallback func(st Status, data []byte)

// Option configures a Device at construction.
type Option func(*Device)

// WithLock makes every operation on the Device acquire l. If l also
// implements TimedLocker, acquisition is bounded by the Device timeout
// and reports Locked when it expires; otherwise it blocks.
func WithLock(l sync.Locker) Option {
	return func(d *Device) { d.guard = newGuard(l) }
}

// Device is a UART channel. It starts Closed; one of the Open variants
// binds it to a transport and a receive buffer ownership mode, Close
// releases both.
//
// Without WithLock a Device does no synchronisation of its own and must
// not be used from several goroutines at once.
type Device struct {
	id     string
	cfg    Config
	drv    Driver
	guard  guard
	framer framer

	timeout atomic.Duration
	open    atomic.Bool

	mode    mode
	session *session

	// dispatch orders callback delivery against Close when no lock was
	// supplied. It is shared with the receive goroutine, which must not
	// keep the Device reachable.
	dispatch *sync.Mutex
}

// mode is the receive buffer ownership of an open Device.
type mode interface {
	isMode()
}

type ownedBuffer struct {
	buf []byte
}

type borrowedBuffer struct {
	buf     []byte
	staging []byte
}

type callbackMode struct {
	fn   ReadCallback
	stop chan struct{}
	done chan struct{}
}

func (*ownedBuffer) isMode()    {}
func (*borrowedBuffer) isMode() {}
func (*callbackMode) isMode()   {}

// session owns the transport of one Open/Close cycle and, in push
// mode, the stop signal of its receive goroutine.
type session struct {
	t       Transport
	cb      *callbackMode
	once    sync.Once
	err     error
	cleanup runtime.Cleanup
}

func (s *session) release() {
	s.once.Do(func() {
		if s.cb != nil {
			close(s.cb.stop)
		}
		s.err = s.t.Close()
	})
}

// New validates cfg and returns a closed Device for the UART named id.
func New(cfg Config, id string, drv Driver, opts ...Option) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if drv == nil {
		return nil, errors.New("uart: nil driver")
	}
	if v, ok := drv.(ConfigValidator); ok {
		if err := v.ValidateConfig(cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	d := &Device{
		id:       id,
		cfg:      cfg,
		drv:      drv,
		framer:   newFramer(cfg),
		dispatch: new(sync.Mutex),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.timeout.Store(cfg.Timeout)
	return d, nil
}

func (d *Device) ID() string { return d.id }

// Config returns the configuration with the current timeout.
func (d *Device) Config() Config {
	c := d.cfg
	c.Timeout = d.Timeout()
	return c
}

func (d *Device) Timeout() time.Duration { return d.timeout.Load() }

// SetTimeout changes the lock acquisition and write bound for later
// operations. Drivers pick up the new value on the next Open.
func (d *Device) SetTimeout(t time.Duration) {
	if t < 0 {
		t = 0
	}
	d.timeout.Store(t)
}

func (d *Device) IsOpen() bool { return d.open.Load() }

// Open opens the Device with a buffer it allocates and owns, sized by
// Config.BufferSize. It fails with BufferUninitialized when BufferSize is zero.
func (d *Device) Open() Status {
	return d.openWith(func() (mode, Status) {
		if d.cfg.BufferSize == 0 {
			return nil, status(BufferUninitialized)
		}
		return &ownedBuffer{buf: make([]byte, d.cfg.BufferSize)}, status(Okay)
	})
}

// OpenBuffer opens the Device reading into buf. The caller keeps
// ownership; Read fills at most len(buf) bytes and never grows buf.
func (d *Device) OpenBuffer(buf []byte) Status {
	return d.openWith(func() (mode, Status) {
		if len(buf) == 0 {
			return nil, status(BufferUninitialized)
		}
		return &borrowedBuffer{buf: buf, staging: make([]byte, len(buf))}, status(Okay)
	})
}

// OpenCallback opens the Device in push mode: fn is called from a
// receive goroutine whenever data arrives. Read fails with ModeMismatch
// while the callback is registered.
func (d *Device) OpenCallback(fn ReadCallback) Status {
	return d.openWith(func() (mode, Status) {
		if fn == nil {
			return nil, status(BufferUninitialized)
		}
		return &callbackMode{fn: fn, stop: make(chan struct{}), done: make(chan struct{})}, status(Okay)
	})
}

func (d *Device) openWith(build func() (mode, Status)) Status {
	if !d.guard.acquire(d.Timeout()) {
		return status(Locked)
	}
	defer d.guard.release()

	if d.mode != nil {
		return status(AlreadyOpen)
	}
	m, st := build()
	if st.HasError() {
		return st
	}
	cfg := d.Config()
	t, err := d.drv.Open(d.id, cfg)
	if err != nil {
		trace("uart: open", d.id, "failed:", err)
		return Status{Code: NoConnection, Cause: fmt.Errorf("open %s: %w", d.id, err)}
	}

	sess := &session{t: t}
	cb, push := m.(*callbackMode)
	if push {
		sess.cb = cb
	}
	sess.cleanup = runtime.AddCleanup(d, (*session).release, sess)
	d.session = sess
	d.mode = m
	d.open.Store(true)
	if push {
		r := &receiver{
			id:       d.id,
			guard:    d.guard,
			framer:   d.framer,
			dispatch: d.dispatch,
		}
		go r.run(t, cb, cfg)
	}
	trace("uart: opened", d.id)
	return status(Okay)
}

// Close releases the transport and any self-owned buffer and stops
// callback delivery. A caller-supplied buffer is left untouched. Closing
// a closed Device is a no-op. In push mode Close returns only after the
// receive goroutine has exited.
//
// If the transport fails to close, the Device still ends Closed, since
// the session cannot be resumed, and Close reports NoConnection with
// the cause.
func (d *Device) Close() Status {
	if !d.guard.acquire(d.Timeout()) {
		return status(Locked)
	}
	if !d.guard.present() {
		d.dispatch.Lock()
	}
	cb, err := d.teardown()
	if !d.guard.present() {
		d.dispatch.Unlock()
	}
	d.guard.release()

	if cb != nil {
		<-cb.done
	}
	if err != nil {
		trace("uart: close", d.id, "failed:", err)
		return Status{Code: NoConnection, Cause: fmt.Errorf("close %s: %w", d.id, err)}
	}
	return status(Okay)
}

func (d *Device) teardown() (*callbackMode, error) {
	if d.mode == nil {
		return nil, nil
	}
	cb, _ := d.mode.(*callbackMode)
	sess := d.session
	d.mode, d.session = nil, nil
	d.open.Store(false)

	sess.cleanup.Stop()
	sess.release()
	trace("uart: closed", d.id)
	return cb, sess.err
}

// Read pulls the bytes available on the transport into the active
// buffer and returns a view of them. In self-managed mode the view is
// overwritten by the next Read; in caller-managed mode it aliases the
// caller's buffer. On any error Data is nil and the caller's buffer is
// not modified.
//
// A Device with no buffer or callback bound, that is one never opened
// or already closed, reports NotOpen rather than BufferUninitialized;
// BufferUninitialized is kept for Open variants given nothing to bind.
func (d *Device) Read() Response {
	if !d.guard.acquire(d.Timeout()) {
		return Response{Status: status(Locked)}
	}
	defer d.guard.release()

	var dst []byte
	switch m := d.mode.(type) {
	case nil:
		return Response{Status: status(NotOpen)}
	case *callbackMode:
		return Response{Status: status(ModeMismatch)}
	case *ownedBuffer:
		dst = m.buf
	case *borrowedBuffer:
		dst = m.staging
	}

	n, err := d.session.t.Receive(dst)
	if err != nil {
		st := transportStatus(err)
		trace("uart: read", d.id, st)
		return Response{Status: st}
	}
	d.framer.decode(dst[:n])

	if b, ok := d.mode.(*borrowedBuffer); ok {
		n = copy(b.buf, dst[:n])
		return Response{Data: b.buf[:n]}
	}
	return Response{Data: dst[:n]}
}

// Write transmits p. Short sends are retried while the transport keeps
// accepting bytes, for at most the Device timeout when one is set.
// If p cannot be sent in full Write returns the count already sent with
// PartialWrite, or with the transport's status if it failed; the caller
// resumes from p[n:].
func (d *Device) Write(p []byte) (int, Status) {
	timeout := d.Timeout()
	if !d.guard.acquire(timeout) {
		return 0, status(Locked)
	}
	defer d.guard.release()

	if d.mode == nil {
		return 0, status(NotOpen)
	}
	wire := p
	if !d.framer.identity() {
		wire = make([]byte, len(p))
		d.framer.encode(wire, p)
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	t := d.session.t
	written := 0
	for written < len(wire) {
		n, err := t.Send(wire[written:])
		written += n
		if err != nil {
			st := transportStatus(err)
			trace("uart: write", d.id, st, "after", written, "bytes")
			return written, st
		}
		if written == len(wire) {
			break
		}
		if deadline.IsZero() {
			if n == 0 {
				return written, status(PartialWrite)
			}
			continue
		}
		if time.Now().After(deadline) {
			return written, status(PartialWrite)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	return written, status(Okay)
}
