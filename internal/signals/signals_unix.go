//go:build unix

// Package signals lists the OS signals that cancel a running command.
package signals

import (
	"os"
	"syscall"
)

// ShutdownSignals returns the signals that cancel a running command: Ctrl-C
// plus SIGTERM from process managers.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
