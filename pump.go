package uart

import "sync"

// minChunk is the smallest receive size used in push mode.
const minChunk = 256

// receiver runs the receive goroutine of a push-mode session. It holds
// only what delivery needs, never the Device, so an abandoned Device
// can still be collected and its session cleanup can stop the goroutine.
type receiver struct {
	id       string
	guard    guard
	framer   framer
	dispatch *sync.Mutex
}

// run receives unlocked; each delivery holds the Device lock so it is
// ordered with Write and Close.
func (r *receiver) run(t Transport, cb *callbackMode, cfg Config) {
	defer close(cb.done)

	buf := make([]byte, max(cfg.BufferSize, minChunk))
	for {
		n, err := t.Receive(buf)
		if n == 0 && err == nil {
			select {
			case <-cb.stop:
				return
			default:
				continue
			}
		}
		if !r.enter(cb) {
			return
		}
		if n > 0 {
			payload := buf[:n]
			r.framer.decode(payload)
			cb.fn(status(Okay), payload)
		}
		if err != nil {
			st := transportStatus(err)
			trace("uart: receive", r.id, st)
			cb.fn(st, nil)
		}
		r.leave()
		if err != nil {
			return
		}
	}
}

// enter takes the delivery lock and reports false once the session has
// been closed.
func (r *receiver) enter(cb *callbackMode) bool {
	if r.guard.present() {
		r.guard.acquireBlocking()
	} else {
		r.dispatch.Lock()
	}
	select {
	case <-cb.stop:
		r.leave()
		return false
	default:
		return true
	}
}

func (r *receiver) leave() {
	if r.guard.present() {
		r.guard.release()
	} else {
		r.dispatch.Unlock()
	}
}
