// Package capability holds host resources the client needs while it runs.
package capability

// Lock is a host capability held for the duration of a client run.
type Lock interface {
	// Acquire takes the capability. Acquiring a held lock is a no-op.
	Acquire() error

	// Release gives the capability back. Releasing an unheld lock is a no-op.
	Release() error
}

// Noop is a Lock for hosts that need no capability.
type Noop struct{}

func (Noop) Acquire() error { return nil }
func (Noop) Release() error { return nil }
