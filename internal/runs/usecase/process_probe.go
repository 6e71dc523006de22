package usecase

import (
	"errors"
	"os"
	"syscall"
)

// SignalProbe checks process liveness with a null signal. Sending signal 0
// performs the existence and permission checks without delivering anything.
type SignalProbe struct{}

// NewSignalProbe creates the real OS-backed process probe.
func NewSignalProbe() *SignalProbe {
	return &SignalProbe{}
}

// IsAlive reports whether pid identifies a live process. EPERM means the
// process exists but belongs to someone else, which still counts as alive.
func (p *SignalProbe) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	// On unix FindProcess always succeeds; the signal is the real probe.
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, syscall.EPERM) {
		return true
	}
	return false
}
