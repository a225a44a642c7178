package uart

import (
	"errors"
	"fmt"
	"time"
)

// Parity selects the parity bit appended to each character.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	}
	return fmt.Sprintf("Parity(%d)", uint8(p))
}

// StopBits selects the number of stop bits framing each character.
type StopBits uint8

const (
	OneStopBit StopBits = iota
	OnePointFiveStopBits
	TwoStopBits
)

func (s StopBits) String() string {
	switch s {
	case OneStopBit:
		return "1"
	case OnePointFiveStopBits:
		return "1.5"
	case TwoStopBits:
		return "2"
	}
	return fmt.Sprintf("StopBits(%d)", uint8(s))
}

// BitOrder is the order in which the bits of a character go on the wire.
type BitOrder uint8

const (
	LSBFirst BitOrder = iota
	MSBFirst
)

func (b BitOrder) String() string {
	switch b {
	case LSBFirst:
		return "lsb-first"
	case MSBFirst:
		return "msb-first"
	}
	return fmt.Sprintf("BitOrder(%d)", uint8(b))
}

const (
	MinDataBits = 5
	MaxDataBits = 8

	// MaxBufferSize caps a self-managed receive buffer.
	MaxBufferSize = 1024 * 1024

	// DefaultTimeout is used by drivers as their receive poll interval
	// when Config.Timeout is zero.
	DefaultTimeout = 100 * time.Millisecond
)

var ErrInvalidConfig = errors.New("invalid uart config")

// Config holds the framing and buffering parameters of a Device.
//
// BufferSize decides who owns the receive buffer: zero means the Device
// must be opened with OpenBuffer or OpenCallback, a positive value lets
// Open allocate a buffer of that capacity.
type Config struct {
	BaudRate   int
	DataBits   int
	Parity     Parity
	StopBits   StopBits
	BitOrder   BitOrder
	Timeout    time.Duration
	BufferSize int
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.BaudRate <= 0:
		return fmt.Errorf("%w: baud rate %d", ErrInvalidConfig, c.BaudRate)
	case c.DataBits < MinDataBits || c.DataBits > MaxDataBits:
		return fmt.Errorf("%w: data bits %d not in [%d, %d]", ErrInvalidConfig, c.DataBits, MinDataBits, MaxDataBits)
	case c.Parity > ParityEven:
		return fmt.Errorf("%w: parity %v", ErrInvalidConfig, c.Parity)
	case c.StopBits > TwoStopBits:
		return fmt.Errorf("%w: stop bits %v", ErrInvalidConfig, c.StopBits)
	case c.BitOrder > MSBFirst:
		return fmt.Errorf("%w: bit order %v", ErrInvalidConfig, c.BitOrder)
	case c.Timeout < 0:
		return fmt.Errorf("%w: negative timeout %v", ErrInvalidConfig, c.Timeout)
	case c.BufferSize < 0 || c.BufferSize > MaxBufferSize:
		return fmt.Errorf("%w: buffer size %d not in [0, %d]", ErrInvalidConfig, c.BufferSize, MaxBufferSize)
	}
	return nil
}

// pollInterval is how long a driver waits for input before reporting none.
func (c Config) pollInterval() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
