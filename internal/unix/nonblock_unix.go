//go:build unix

// Package unix provides platform-specific open flags and errno checks for
// the control FIFO.
package unix

import (
	"errors"

	sys "golang.org/x/sys/unix"
)

// ONonblock is the non-blocking open flag. Opening a FIFO write-only with
// it fails with ENXIO instead of blocking when nothing reads the FIFO.
const ONonblock = sys.O_NONBLOCK

// IsNoReader reports whether err means the FIFO had no reader, i.e. the
// supervisor is not running.
func IsNoReader(err error) bool {
	return errors.Is(err, sys.ENXIO)
}
