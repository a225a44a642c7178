package uart

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ErrorCode is the kind of result every Device operation reports.
// Transports may define their own codes from TransportSpecific upward.
type ErrorCode uint16

const (
	Okay ErrorCode = iota
	NoConnection
	Locked
	Interrupted
	BufferUninitialized
	AlreadyOpen
	NotOpen
	ModeMismatch
	PartialWrite

	TransportSpecific ErrorCode = 0x100
)

var codeNames = map[ErrorCode]string{
	Okay:                "okay",
	NoConnection:        "no connection",
	Locked:              "locked",
	Interrupted:         "interrupted",
	BufferUninitialized: "buffer uninitialized",
	AlreadyOpen:         "already open",
	NotOpen:             "not open",
	ModeMismatch:        "mode mismatch",
	PartialWrite:        "partial write",
}

func (c ErrorCode) Error() string {
	if s, ok := codeNames[c]; ok {
		return "uart: " + s
	}
	if c >= TransportSpecific {
		return fmt.Sprintf("uart: transport error %#x", uint16(c))
	}
	return fmt.Sprintf("uart: error %d", uint16(c))
}

func (c ErrorCode) String() string { return c.Error() }

// Coder is implemented by transport errors that carry their own ErrorCode.
type Coder interface {
	Code() ErrorCode
}

// Status is the result of a Device operation. The error predicate is
// derived from Code.
type Status struct {
	Code  ErrorCode
	Cause error
}

func (s Status) OK() bool       { return s.Code == Okay }
func (s Status) HasError() bool { return s.Code != Okay }

// Err returns nil for an okay status, otherwise an error matching Code
// under errors.Is and carrying Cause.
func (s Status) Err() error {
	if s.OK() {
		return nil
	}
	if s.Cause == nil {
		return s.Code
	}
	return fmt.Errorf("%w: %w", s.Code, s.Cause)
}

func (s Status) String() string {
	if s.Cause != nil {
		return fmt.Sprintf("%v: %v", s.Code, s.Cause)
	}
	return s.Code.String()
}

func status(code ErrorCode) Status { return Status{Code: code} }

// Response pairs a Status with a view of received bytes. Data is nil
// unless Status is okay and belongs to the Device: in self-managed mode
// it is overwritten by the next Read and released by Close.
type Response struct {
	Status
	Data []byte
}

// ErrClosed is returned by transports used after Close.
var ErrClosed = errors.New("uart: transport closed")

// transportStatus maps a transport error onto the public ErrorCode set.
func transportStatus(err error) Status {
	var coder Coder
	switch {
	case err == nil:
		return status(Okay)
	case errors.As(err, &coder):
		return Status{Code: coder.Code(), Cause: err}
	case errors.Is(err, syscall.EINTR), errors.Is(err, os.ErrDeadlineExceeded):
		return Status{Code: Interrupted, Cause: err}
	}
	// EOF, closed descriptors and anything unrecognised mean the line is gone.
	return Status{Code: NoConnection, Cause: err}
}
