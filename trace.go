package uart

import "log"

var traceEnabled = false

// EnableTrace turns on logging of Device state transitions and transport
// failures to the standard logger.
func EnableTrace(enable bool) {
	traceEnabled = enable
}

func trace(args ...interface{}) {
	if traceEnabled {
		log.Println(args...)
	}
}
