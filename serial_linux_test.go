//go:build linux
// +build linux

package uart

import (
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

func openPty(t *testing.T) (master, slave *os.File) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })
	return master, slave
}

func ptyConfig(bufferSize int) Config {
	return Config{
		BaudRate:   115200,
		DataBits:   8,
		Timeout:    20 * time.Millisecond,
		BufferSize: bufferSize,
	}
}

func newPtyDevice(t *testing.T, drv Driver, slave *os.File, cfg Config, opts ...Option) *Device {
	t.Helper()
	d, err := New(cfg, slave.Name(), drv, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

// readUntil polls Read until want bytes have arrived.
func readUntil(t *testing.T, d *Device, want int) []byte {
	t.Helper()
	var got []byte
	deadline := time.Now().Add(time.Second)
	for len(got) < want && time.Now().Before(deadline) {
		resp := d.Read()
		require.True(t, resp.OK(), resp.String())
		got = append(got, resp.Data...)
	}
	return got
}

func TestLinuxDriver_ValidateConfig(t *testing.T) {
	cfg := ptyConfig(16)
	cfg.BaudRate = 12345
	_, err := New(cfg, "/dev/null", LinuxDriver{})
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, ErrUnsupportedBaud)

	cfg = ptyConfig(16)
	cfg.StopBits = OnePointFiveStopBits
	_, err = New(cfg, "/dev/null", LinuxDriver{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLinuxDriver_OpenMissingDevice(t *testing.T) {
	d, err := New(ptyConfig(16), "/dev/does-not-exist-uart", LinuxDriver{})
	require.NoError(t, err)
	st := d.Open()
	require.Equal(t, NoConnection, st.Code)
	require.False(t, d.IsOpen())
}

func TestLinuxDriver_BasicRead(t *testing.T) {
	master, slave := openPty(t)
	d := newPtyDevice(t, LinuxDriver{}, slave, ptyConfig(64))
	require.True(t, d.Open().OK())

	_, err := master.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello\n"), readUntil(t, d, 6))
}

func TestLinuxDriver_Write(t *testing.T) {
	master, slave := openPty(t)
	d := newPtyDevice(t, LinuxDriver{}, slave, ptyConfig(0))
	require.True(t, d.OpenBuffer(make([]byte, 32)).OK())

	line := "testline\r\n"
	n, st := d.Write([]byte(line))
	require.True(t, st.OK(), st.String())
	require.Equal(t, len(line), n)

	buf := make([]byte, len(line))
	n, err := master.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(line), n)
	require.Equal(t, line, string(buf))
}

func TestLinuxDriver_ChatMasterSlave(t *testing.T) {
	master, slave := openPty(t)
	d := newPtyDevice(t, LinuxDriver{}, slave, ptyConfig(0), WithLock(&TimedMutex{}))

	fromMaster := make(chan received, 4)
	require.True(t, d.OpenCallback(collect(fromMaster)).OK())

	fromSlave := make(chan string, 1)
	errors := make(chan error, 1)
	go func() {
		buf := make([]byte, 128)
		n, err := master.Read(buf)
		if err != nil {
			errors <- err
			return
		}
		fromSlave <- string(buf[:n])
	}()

	// 1. Master writes to slave, the callback should receive
	_, err := master.Write([]byte("ping"))
	require.NoError(t, err)

	select {
	case r := <-fromMaster:
		require.True(t, r.st.OK(), r.st.String())
		require.Equal(t, "ping", string(r.data))
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for slave to receive from master")
	}

	// 2. Device writes to master while the callback is registered
	_, st := d.Write([]byte("pong"))
	require.True(t, st.OK(), st.String())

	select {
	case msg := <-fromSlave:
		require.Equal(t, "pong", msg)
	case err := <-errors:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for master to receive from slave")
	}
}

func TestLinuxDriver_Killability(t *testing.T) {
	_, slave := openPty(t)
	cfg := ptyConfig(0)
	cfg.Timeout = time.Minute
	d := newPtyDevice(t, LinuxDriver{}, slave, cfg)
	require.True(t, d.OpenCallback(func(Status, []byte) {}).OK())

	// Give the receive goroutine a chance to block in poll
	time.Sleep(50 * time.Millisecond)

	done := make(chan Status, 1)
	go func() { done <- d.Close() }()

	select {
	case st := <-done:
		require.True(t, st.OK(), st.String())
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for Close to stop the receive goroutine")
	}
	require.True(t, d.Close().OK())
}

func TestLinuxDriver_ErrorPropagation(t *testing.T) {
	master, slave := openPty(t)
	d := newPtyDevice(t, LinuxDriver{}, slave, ptyConfig(0))

	ch := make(chan received, 4)
	require.True(t, d.OpenCallback(collect(ch)).OK())

	// Simulate device disconnect by closing master
	require.NoError(t, master.Close())

	select {
	case r := <-ch:
		require.Equal(t, NoConnection, r.st.Code)
		require.Error(t, r.st.Err())
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error after device disconnect")
	}
}
