package engine

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNotLoaded is returned by Loaded before any Load.
var ErrNotLoaded = errors.New("engine binding not loaded")

var (
	bindOnce sync.Once
	bindDone atomic.Bool
	bound    Engine
	bindErr  error
)

// Load binds the process-wide engine exactly once. The first call runs
// newEngine; later calls return the first result and ignore their argument.
func Load(newEngine func() (Engine, error)) (Engine, error) {
	bindOnce.Do(func() {
		bound, bindErr = newEngine()
		if bindErr == nil && bound == nil {
			bindErr = errors.New("engine factory returned nil")
		}
		bindDone.Store(true)
	})
	return bound, bindErr
}

// Loaded returns the engine bound by Load.
func Loaded() (Engine, error) {
	if !bindDone.Load() {
		return nil, ErrNotLoaded
	}
	return bound, bindErr
}
