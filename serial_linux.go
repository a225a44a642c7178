//go:build linux
// +build linux

package uart

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

var ErrUnsupportedBaud = errors.New("unsupported baud rate")

var baudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

var dataBits = map[int]uint32{
	5: unix.CS5,
	6: unix.CS6,
	7: unix.CS7,
	8: unix.CS8,
}

// LinuxDriver opens tty devices by path with raw termios and
// syscall-level I/O. Receive is killable: Close wakes a goroutine blocked
// in it through a self-pipe.
type LinuxDriver struct{}

func (LinuxDriver) ValidateConfig(cfg Config) error {
	if _, ok := baudRates[cfg.BaudRate]; !ok {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaud, cfg.BaudRate)
	}
	if cfg.StopBits == OnePointFiveStopBits {
		return fmt.Errorf("stop bits %v not supported by termios", cfg.StopBits)
	}
	return nil
}

// Open configures the tty at path for raw, low-latency operation.
func (d LinuxDriver) Open(path string, cfg Config) (Transport, error) {
	if err := d.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			unix.Close(fd)
		}
	}()

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("get termios: %w", err)
	}
	setRaw(termios, cfg)
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return nil, fmt.Errorf("set termios: %w", err)
	}

	// Back to blocking now that the line is configured
	if err := unix.SetNonblock(fd, false); err != nil {
		return nil, fmt.Errorf("set blocking: %w", err)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe(pipeFds); err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	ok = true

	return &linuxPort{
		fd:    fd,
		file:  os.NewFile(uintptr(fd), path),
		done:  make(chan struct{}),
		poll:  cfg.pollInterval(),
		pipeR: pipeFds[0],
		pipeW: pipeFds[1],
	}, nil
}

func setRaw(t *unix.Termios, cfg Config) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY | unix.INPCK
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CMSPAR | unix.CSTOPB | unix.CRTSCTS
	t.Cflag |= unix.CREAD | unix.CLOCAL | dataBits[cfg.DataBits]

	switch cfg.Parity {
	case ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
		t.Iflag |= unix.INPCK
	case ParityEven:
		t.Cflag |= unix.PARENB
		t.Iflag |= unix.INPCK
	}
	if cfg.StopBits == TwoStopBits {
		t.Cflag |= unix.CSTOPB
	}

	baud := baudRates[cfg.BaudRate]
	t.Cflag &^= unix.CBAUD
	t.Cflag |= baud
	t.Ispeed = baud
	t.Ospeed = baud

	// VMIN=1, VTIME=0: a read returns as soon as one byte is there
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
}

type linuxPort struct {
	fd        int
	file      *os.File
	done      chan struct{}
	closeOnce sync.Once
	poll      time.Duration
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd
}

func (p *linuxPort) Send(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, ErrClosed
	default:
	}
	return p.file.Write(b)
}

// Receive waits up to the poll interval for input or Close.
func (p *linuxPort) Receive(b []byte) (int, error) {
	pfd := []unix.PollFd{
		{Fd: int32(p.fd), Events: unix.POLLIN},
		{Fd: int32(p.pipeR), Events: unix.POLLIN},
	}
	n, err := unix.Poll(pfd, int(p.poll/time.Millisecond))
	if errors.Is(err, unix.EINTR) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	select {
	case <-p.done:
		return 0, ErrClosed
	default:
	}
	if n == 0 {
		return 0, nil
	}
	if pfd[1].Revents&unix.POLLIN != 0 {
		return 0, ErrClosed
	}
	if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		return p.file.Read(b)
	}
	return 0, nil
}

// Close unblocks any Receive. Safe to call multiple times.
func (p *linuxPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		// Wake up poll using self-pipe
		unix.Write(p.pipeW, []byte{1})
		err = p.file.Close()
		unix.Close(p.pipeR)
		unix.Close(p.pipeW)
	})
	return err
}
