package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanhaley32/ouinet-shell/internal/engine/enginetest"
)

const injector = "injector.example:7070"

type scriptedPrompter struct {
	answer string
	err    error
	calls  int
}

func (p *scriptedPrompter) Prompt(context.Context, Challenge) (string, error) {
	p.calls++
	return p.answer, p.err
}

func TestAuthenticator_NewChallengeIDsUnique(t *testing.T) {
	a := NewAuthenticator(newStore(t), enginetest.New(), nil, injector, nil, nil)

	first := a.NewChallenge(injector, "ouinet")
	second := a.NewChallenge(injector, "ouinet")

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, injector, first.Endpoint)
	assert.Equal(t, "ouinet", first.Realm)
}

func TestAuthenticator_UsesStoredCredential(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set(injector, "user:pass"))
	fake := enginetest.New()
	prompter := &scriptedPrompter{answer: "other"}
	a := NewAuthenticator(store, fake, prompter, injector, nil, nil)

	var retried []string
	err := a.Answer(context.Background(), a.NewChallenge(injector, ""), func(c string) error {
		retried = append(retried, c)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"user:pass"}, retried)
	assert.Equal(t, [][2]string{{injector, "user:pass"}}, fake.Credentials())
	assert.Zero(t, prompter.calls)
}

func TestAuthenticator_PromptsOnMissAndSaves(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("elsewhere:1", "stale"))
	fake := enginetest.New()
	prompter := &scriptedPrompter{answer: "user:new"}
	a := NewAuthenticator(store, fake, prompter, injector, nil, nil)

	calls := 0
	err := a.Answer(context.Background(), a.NewChallenge(injector, ""), func(string) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, prompter.calls)

	got, ok := store.Get(injector)
	assert.True(t, ok)
	assert.Equal(t, "user:new", got)
	assert.Equal(t, [][2]string{{injector, "user:new"}}, fake.Credentials())
}

func TestAuthenticator_RetriesOncePerChallenge(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set(injector, "user:pass"))
	a := NewAuthenticator(store, enginetest.New(), nil, injector, nil, nil)
	ch := a.NewChallenge(injector, "")

	calls := 0
	retry := func(string) error { calls++; return nil }

	require.NoError(t, a.Answer(context.Background(), ch, retry))
	assert.ErrorIs(t, a.Answer(context.Background(), ch, retry), ErrAlreadyRetried)
	assert.Equal(t, 1, calls)

	require.NoError(t, a.Answer(context.Background(), a.NewChallenge(injector, ""), retry))
	assert.Equal(t, 2, calls)
}

func TestAuthenticator_PreviousFailedSkipsStore(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set(injector, "user:wrong"))
	prompter := &scriptedPrompter{answer: "user:right"}
	a := NewAuthenticator(store, enginetest.New(), prompter, injector, nil, nil)

	ch := a.NewChallenge(injector, "")
	ch.PreviousFailed = true

	var got string
	require.NoError(t, a.Answer(context.Background(), ch, func(c string) error { got = c; return nil }))

	assert.Equal(t, "user:right", got)
	stored, _ := store.Get(injector)
	assert.Equal(t, "user:right", stored)
}

func TestAuthenticator_RejectsOtherEndpoints(t *testing.T) {
	fake := enginetest.New()
	a := NewAuthenticator(newStore(t), fake, &scriptedPrompter{answer: "x"}, injector, nil, nil)

	err := a.Answer(context.Background(), a.NewChallenge("evil.example:80", ""), func(string) error {
		t.Fatal("retry must not run")
		return nil
	})

	assert.ErrorIs(t, err, ErrUnknownEndpoint)
	assert.Empty(t, fake.Credentials())
}

func TestAuthenticator_NoEndpointConfigured(t *testing.T) {
	a := NewAuthenticator(newStore(t), enginetest.New(), nil, "", nil, nil)
	assert.ErrorIs(t, a.Answer(context.Background(), a.NewChallenge("", ""), nil), ErrUnknownEndpoint)
}

func TestAuthenticator_NoCredential(t *testing.T) {
	a := NewAuthenticator(newStore(t), enginetest.New(), nil, injector, nil, nil)
	ch := a.NewChallenge(injector, "")

	assert.ErrorIs(t, a.Answer(context.Background(), ch, nil), ErrNoCredential)

	declined := NewAuthenticator(newStore(t), enginetest.New(), &scriptedPrompter{}, injector, nil, nil)
	assert.ErrorIs(t, declined.Answer(context.Background(), ch, nil), ErrNoCredential)
}

func TestAuthenticator_UnansweredChallengeCanBeRetried(t *testing.T) {
	store := newStore(t)
	prompter := &scriptedPrompter{err: errors.New("tty closed")}
	a := NewAuthenticator(store, enginetest.New(), prompter, injector, nil, nil)
	ch := a.NewChallenge(injector, "")

	assert.Error(t, a.Answer(context.Background(), ch, nil))

	prompter.err = nil
	prompter.answer = "user:pass"
	assert.NoError(t, a.Answer(context.Background(), ch, nil))
}

func TestAuthenticator_RetryErrorWrapped(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set(injector, "user:pass"))
	a := NewAuthenticator(store, enginetest.New(), nil, injector, nil, nil)
	boom := errors.New("boom")

	err := a.Answer(context.Background(), a.NewChallenge(injector, ""), func(string) error { return boom })
	assert.ErrorIs(t, err, boom)
}
