//go:build !unix

// Package unix provides platform-specific open flags and errno checks for
// the control FIFO.
package unix

// ONonblock is zero where FIFOs have no non-blocking open semantics.
const ONonblock = 0

// IsNoReader always reports false on this platform.
func IsNoReader(error) bool {
	return false
}
