package uart

import (
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// PortDriver opens serial ports through go.bug.st/serial and works on
// every platform that library supports.
type PortDriver struct{}

// Ports lists the serial port names PortDriver can open.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

func (PortDriver) ValidateConfig(cfg Config) error {
	_, err := portMode(cfg)
	return err
}

func portMode(cfg Config) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}
	switch cfg.Parity {
	case ParityNone:
		mode.Parity = serial.NoParity
	case ParityOdd:
		mode.Parity = serial.OddParity
	case ParityEven:
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("parity %v", cfg.Parity)
	}
	switch cfg.StopBits {
	case OneStopBit:
		mode.StopBits = serial.OneStopBit
	case OnePointFiveStopBits:
		mode.StopBits = serial.OnePointFiveStopBits
	case TwoStopBits:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("stop bits %v", cfg.StopBits)
	}
	return mode, nil
}

func (PortDriver) Open(name string, cfg Config) (Transport, error) {
	mode, err := portMode(cfg)
	if err != nil {
		return nil, err
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := p.SetReadTimeout(cfg.pollInterval()); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &portTransport{port: p}, nil
}

type portTransport struct {
	port      serial.Port
	closeOnce sync.Once
	closeErr  error
}

func (t *portTransport) Send(p []byte) (int, error) { return t.port.Write(p) }

// Receive returns (0, nil) when the read timeout expires.
func (t *portTransport) Receive(p []byte) (int, error) { return t.port.Read(p) }

func (t *portTransport) Close() error {
	t.closeOnce.Do(func() { t.closeErr = t.port.Close() })
	return t.closeErr
}
