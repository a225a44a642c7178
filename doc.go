// Package uart provides a UART device abstraction with an explicit
// open/close lifecycle, bounded locking and three ways to receive data.
//
// A Device is built from a Config, a device identifier and a Driver for
// the physical layer. Bundled drivers:
//   - LinuxDriver: raw termios tty access with killable, poll-based receive
//   - PortDriver: portable ports through go.bug.st/serial
//   - Loopback: in-memory line where every sent byte is received back
//
// Receive buffer ownership is chosen when the Device is opened:
//   - Open: the Device allocates Config.BufferSize bytes and owns them
//   - OpenBuffer: Read fills a buffer the caller owns
//   - OpenCallback: a receive goroutine pushes data to a callback
//
// Every operation reports a Status instead of panicking, so a Device is
// usable from code that must never unwind. Pass WithLock to share a
// Device between goroutines; a TimedLocker such as *TimedMutex bounds
// every wait by the Device timeout and reports Locked when it expires.
//
// Example usage:
//
//	cfg := uart.Config{
//	    BaudRate:   115200,
//	    DataBits:   8,
//	    Timeout:    50 * time.Millisecond,
//	    BufferSize: 4096,
//	}
//	dev, err := uart.New(cfg, "/dev/ttyUSB0", uart.LinuxDriver{}, uart.WithLock(&uart.TimedMutex{}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if st := dev.Open(); !st.OK() {
//	    log.Fatal(st)
//	}
//	defer dev.Close()
//
//	if _, st := dev.Write([]byte("C,START\r\n")); !st.OK() {
//	    log.Println("Write failed:", st)
//	}
//	resp := dev.Read()
//	if resp.OK() {
//	    fmt.Printf("Received: %q\n", resp.Data)
//	}
package uart
