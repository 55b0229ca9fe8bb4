package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/term"

	"github.com/jeanhaley32/ouinet-shell/internal/credentials"
)

// ErrNotInteractive is returned when no terminal is available to prompt on.
var ErrNotInteractive = errors.New("not a terminal")

// Prompter asks for injector credentials on the controlling terminal.
// It implements credentials.Prompter.
type Prompter struct {
	in           *bufio.Reader
	out          io.Writer
	interactive  func() bool
	readPassword func() ([]byte, error)

	mu sync.Mutex
}

// NewPrompter creates a Prompter reading from stdin and writing to stderr.
func NewPrompter() *Prompter {
	return &Prompter{
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stderr,
		interactive: IsTerminal,
		readPassword: func() ([]byte, error) {
			return term.ReadPassword(int(syscall.Stdin))
		},
	}
}

// Prompt asks for a username and password and returns "user:password".
// An empty username declines the challenge.
func (p *Prompter) Prompt(ctx context.Context, ch credentials.Challenge) (string, error) {
	if env := ReadSecretFromEnv(); env != nil && !ch.PreviousFailed {
		defer env.Clear()
		return env.String(), nil
	}
	if !p.interactive() {
		return "", ErrNotInteractive
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := p.ask(ch)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}

func (p *Prompter) ask(ch credentials.Challenge) (string, error) {
	if ch.PreviousFailed {
		fmt.Fprintf(p.out, "Credentials for %s were rejected.\n", ch.Endpoint)
	}
	if ch.Realm != "" {
		fmt.Fprintf(p.out, "Injector %s requires authentication (%s)\n", ch.Endpoint, ch.Realm)
	} else {
		fmt.Fprintf(p.out, "Injector %s requires authentication\n", ch.Endpoint)
	}

	fmt.Fprint(p.out, "Username: ")
	user, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || user == "") {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	user = strings.TrimSpace(user)
	if user == "" {
		return "", nil
	}

	fmt.Fprint(p.out, "Password: ")
	password, err := p.readPassword()
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	secret := &SecurePassword{data: password}
	defer secret.Clear()

	return user + ":" + secret.String(), nil
}
