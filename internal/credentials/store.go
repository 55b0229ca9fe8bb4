// Package credentials keeps the injector credential and answers the
// engine's authentication challenges with it.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jeanhaley32/ouinet-shell/internal/constants"
	"github.com/jeanhaley32/ouinet-shell/internal/fsutil"
)

// ErrInvalidRecord is returned by Set for records that cannot be stored.
var ErrInvalidRecord = errors.New("invalid credential record")

// Store is a single-slot credential store: the file holds one endpoint and
// its credential as two lines. Setting a record replaces the previous one,
// whatever its endpoint.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Get returns the credential stored for endpoint. It reports false when
// nothing is stored, the stored record belongs to another endpoint, or the
// file is unreadable or malformed.
func (s *Store) Get(endpoint string) (string, bool) {
	if endpoint == "" {
		return "", false
	}
	stored, credential, ok := s.Record()
	if !ok || stored != endpoint {
		return "", false
	}
	return credential, true
}

// Record returns the stored record.
func (s *Store) Record() (endpoint, credential string, ok bool) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		return "", "", false
	}
	return parseRecord(string(data))
}

// Set replaces the stored record.
func (s *Store) Set(endpoint, credential string) error {
	if endpoint == "" || strings.ContainsAny(endpoint, "\r\n") || strings.ContainsAny(credential, "\r\n") {
		return ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fsutil.WriteFileAtomic(s.path, []byte(endpoint+"\n"+credential), constants.FilePermissions); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Clear removes the stored record.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// parseRecord accepts "endpoint\ncredential" with an optional trailing
// newline, as left by editors.
func parseRecord(data string) (endpoint, credential string, ok bool) {
	data = strings.TrimSuffix(data, "\n")
	endpoint, credential, found := strings.Cut(data, "\n")
	if !found || endpoint == "" || credential == "" || strings.Contains(credential, "\n") {
		return "", "", false
	}
	return endpoint, credential, true
}
