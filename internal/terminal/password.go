package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// CredentialsEnvVar is the environment variable holding an injector
// credential for non-interactive use.
const CredentialsEnvVar = "OUINET_SHELL_CREDENTIALS"

// SecurePassword wraps a secret with the ability to clear it from memory.
type SecurePassword struct {
	data []byte
}

// String returns the secret as a string.
func (s *SecurePassword) String() string {
	if s == nil || s.data == nil {
		return ""
	}
	return string(s.data)
}

// Clear zeros out the secret in memory.
func (s *SecurePassword) Clear() {
	if s == nil || s.data == nil {
		return
	}
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
}

// Len returns the length of the secret.
func (s *SecurePassword) Len() int {
	if s == nil {
		return 0
	}
	return len(s.data)
}

// IsTerminal returns true if stdin is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// ReadSecret prompts for a secret without echoing input.
func ReadSecret(prompt string) (*SecurePassword, error) {
	if !IsTerminal() {
		return nil, fmt.Errorf("cannot read secret: not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	return &SecurePassword{data: secret}, nil
}

// ReadSecretFrom reads a single line from r (for piped input).
func ReadSecretFrom(r io.Reader) (*SecurePassword, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
	return &SecurePassword{data: []byte(line)}, nil
}

// ReadSecretFromEnv reads OUINET_SHELL_CREDENTIALS. Returns nil if not set.
func ReadSecretFromEnv() *SecurePassword {
	env := os.Getenv(CredentialsEnvVar)
	if env == "" {
		return nil
	}
	return &SecurePassword{data: []byte(env)}
}

// ReadSecretMultiSource attempts to read a secret from multiple sources in order:
// 1. If useStdin is true, read from stdin (for piped input)
// 2. Check OUINET_SHELL_CREDENTIALS environment variable
// 3. Fall back to interactive terminal prompt
// The caller must call Clear() on the result when done.
func ReadSecretMultiSource(useStdin bool, prompt string) (*SecurePassword, error) {
	if useStdin {
		return ReadSecretFrom(os.Stdin)
	}
	if env := ReadSecretFromEnv(); env != nil {
		return env, nil
	}
	return ReadSecret(prompt)
}
