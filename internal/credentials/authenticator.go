package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jeanhaley32/ouinet-shell/internal/logfields"
	"github.com/jeanhaley32/ouinet-shell/internal/metrics"
)

var (
	// ErrUnknownEndpoint is returned for challenges from an endpoint other
	// than the configured injector.
	ErrUnknownEndpoint = errors.New("challenge from unconfigured endpoint")

	// ErrNoCredential means neither the store nor the prompter produced a
	// credential.
	ErrNoCredential = errors.New("no credential available")

	// ErrAlreadyRetried is returned when a challenge was already answered.
	ErrAlreadyRetried = errors.New("challenge already retried")
)

// Challenge is one authentication request raised by the engine.
type Challenge struct {
	ID       string
	Endpoint string
	Realm    string

	// PreviousFailed is set when the last credential offered for this
	// endpoint was rejected. The stored credential is then skipped.
	PreviousFailed bool
}

// Prompter asks the user for a credential. An empty result means the user
// declined.
type Prompter interface {
	Prompt(ctx context.Context, ch Challenge) (string, error)
}

// Sink receives credentials. engine.Engine satisfies it.
type Sink interface {
	SetCredentialsFor(endpoint, credential string)
}

// Authenticator answers challenges for the configured injector endpoint.
type Authenticator struct {
	store    *Store
	sink     Sink
	prompter Prompter
	endpoint string
	logger   *slog.Logger
	recorder metrics.Recorder

	mu       sync.Mutex
	answered map[string]struct{}
}

// NewAuthenticator creates an Authenticator for injectorEndpoint. prompter
// may be nil, in which case only stored credentials are used.
func NewAuthenticator(store *Store, sink Sink, prompter Prompter, injectorEndpoint string, logger *slog.Logger, recorder metrics.Recorder) *Authenticator {
	return &Authenticator{
		store:    store,
		sink:     sink,
		prompter: prompter,
		endpoint: injectorEndpoint,
		logger:   logfields.Or(logger).With("component", "auth"),
		recorder: metrics.Or(recorder),
		answered: make(map[string]struct{}),
	}
}

// NewChallenge returns a challenge with a fresh ID.
func (a *Authenticator) NewChallenge(endpoint, realm string) Challenge {
	return Challenge{ID: uuid.NewString(), Endpoint: endpoint, Realm: realm}
}

// Answer finds a credential for ch, hands it to the engine and calls retry
// with it. retry runs at most once per challenge ID; later answers to the
// same challenge return ErrAlreadyRetried. A credential obtained from the
// prompter is saved to the store first.
func (a *Authenticator) Answer(ctx context.Context, ch Challenge, retry func(credential string) error) error {
	log := a.logger.With(logfields.Challenge(ch.ID), logfields.Endpoint(ch.Endpoint))

	if a.endpoint == "" || ch.Endpoint != a.endpoint {
		a.recorder.IncChallenge("rejected")
		return ErrUnknownEndpoint
	}

	a.mu.Lock()
	if _, done := a.answered[ch.ID]; done {
		a.mu.Unlock()
		a.recorder.IncChallenge("duplicate")
		return ErrAlreadyRetried
	}
	a.answered[ch.ID] = struct{}{}
	a.mu.Unlock()

	credential, source, err := a.credentialFor(ctx, ch)
	if err != nil {
		// Nothing was retried; the challenge may be answered again.
		a.mu.Lock()
		delete(a.answered, ch.ID)
		a.mu.Unlock()
		a.recorder.IncChallenge("unanswered")
		return err
	}

	if source == "prompt" {
		if err := a.store.Set(ch.Endpoint, credential); err != nil {
			log.Warn("Failed to save credential", logfields.Error(err))
		}
	}

	a.sink.SetCredentialsFor(ch.Endpoint, credential)
	a.recorder.IncChallenge(source)
	log.Info("Answering authentication challenge", slog.String("source", source))

	if retry == nil {
		return nil
	}
	if err := retry(credential); err != nil {
		return fmt.Errorf("retry after authentication failed: %w", err)
	}
	return nil
}

func (a *Authenticator) credentialFor(ctx context.Context, ch Challenge) (credential, source string, err error) {
	if !ch.PreviousFailed {
		if credential, ok := a.store.Get(ch.Endpoint); ok {
			return credential, "store", nil
		}
	}

	if a.prompter == nil {
		return "", "", ErrNoCredential
	}
	credential, err = a.prompter.Prompt(ctx, ch)
	if err != nil {
		return "", "", fmt.Errorf("failed to obtain credential: %w", err)
	}
	if credential == "" {
		return "", "", ErrNoCredential
	}
	return credential, "prompt", nil
}
