package installdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeanhaley32/ouinet-shell/internal/constants"
)

// Resolver handles install directory resolution with priority rules.
type Resolver struct {
	homeDir string
	getenv  func(string) string
}

// NewResolver creates a new Resolver.
func NewResolver() (*Resolver, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return &Resolver{homeDir: homeDir, getenv: os.Getenv}, nil
}

// ShellDir returns the per-user shell directory.
// Returns: ~/.ouinet-shell
func (r *Resolver) ShellDir() string {
	return filepath.Join(r.homeDir, constants.ShellConfigDir)
}

// DefaultDir returns the default install directory.
// Returns: ~/.ouinet-shell/ouinet
func (r *Resolver) DefaultDir() string {
	return filepath.Join(r.ShellDir(), constants.InstallSubdir)
}

// DefaultConfigFile returns the default settings file path.
// Returns: ~/.ouinet-shell/config.yaml
func (r *Resolver) DefaultConfigFile() string {
	return filepath.Join(r.ShellDir(), constants.ConfigFileName)
}

// Resolve applies the install directory priority rules.
// Priority:
// 1. Explicit path (if provided) - use exactly what user specifies
// 2. $OUINET_SHELL_HOME - if set
// 3. Default (~/.ouinet-shell/ouinet)
//
// Returns the resolved directory and whether it exists.
func (r *Resolver) Resolve(explicitPath string) (dir string, exists bool) {
	switch {
	case explicitPath != "":
		dir = explicitPath
	case r.getenv(constants.HomeEnvVar) != "":
		dir = r.getenv(constants.HomeEnvVar)
	default:
		dir = r.DefaultDir()
	}

	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}

// NotFoundError reports a missing install directory.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("install directory not found at %s\nRun 'ouinet-shell init' first or specify --install-dir", e.Path)
}

// ResolveStrict is like Resolve but returns an error if the directory does
// not exist.
func (r *Resolver) ResolveStrict(explicitPath string) (string, error) {
	dir, exists := r.Resolve(explicitPath)
	if !exists {
		return "", &NotFoundError{Path: dir}
	}
	return dir, nil
}
