package uart

// Driver opens the physical layer behind a Device. The id is whatever
// the platform uses to name a UART (a device path for the bundled
// drivers).
type Driver interface {
	Open(id string, cfg Config) (Transport, error)
}

// ConfigValidator is implemented by drivers that can reject settings
// their hardware does not support. New consults it so such settings
// fail construction instead of the first Open.
type ConfigValidator interface {
	ValidateConfig(cfg Config) error
}

// Transport is an open byte-level channel to a UART.
//
// Receive returns whatever is available, waiting at most the driver's
// poll interval; (0, nil) means nothing arrived. Send may accept fewer
// bytes than given. Close must unblock a concurrent Receive.
type Transport interface {
	Send(p []byte) (int, error)
	Receive(p []byte) (int, error)
	Close() error
}
