//go:build !unix

package signals

import "os"

// ShutdownSignals returns the signals that cancel a running command.
// Only Interrupt exists outside Unix.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
