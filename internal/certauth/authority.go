// Package certauth hands out the client's CA root certificate.
package certauth

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jeanhaley32/ouinet-shell/internal/logfields"
)

// Generator creates or locates the CA root certificate for an install
// directory. engine.Engine satisfies it.
type Generator interface {
	CARootCert(installDir string) string
}

// Authority memoizes root certificate paths per install directory so the
// generator runs at most once for each. Regenerating would invalidate trust
// already placed in the previous certificate.
type Authority struct {
	generator Generator
	logger    *slog.Logger

	mu    sync.Mutex
	paths map[string]string
}

// New creates an Authority backed by generator.
func New(generator Generator, logger *slog.Logger) *Authority {
	return &Authority{
		generator: generator,
		logger:    logfields.Or(logger),
		paths:     make(map[string]string),
	}
}

// RootCert returns the root certificate path for installDir. Concurrent
// callers for the same directory share a single generator call.
func (a *Authority) RootCert(installDir string) string {
	key := filepath.Clean(installDir)

	a.mu.Lock()
	defer a.mu.Unlock()

	if path, ok := a.paths[key]; ok {
		return path
	}

	path := a.generator.CARootCert(installDir)
	if path == "" {
		// Not memoized: a later call may succeed.
		a.logger.Warn("CA root certificate unavailable", logfields.InstallDir(installDir))
		return ""
	}

	a.paths[key] = path
	a.logger.Debug("CA root certificate ready", logfields.InstallDir(installDir), logfields.Path(path))
	return path
}
