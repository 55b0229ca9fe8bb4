package terminal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanhaley32/ouinet-shell/internal/credentials"
)

func newTestPrompter(input, password string, out *bytes.Buffer) *Prompter {
	return &Prompter{
		in:           bufio.NewReader(strings.NewReader(input)),
		out:          out,
		interactive:  func() bool { return true },
		readPassword: func() ([]byte, error) { return []byte(password), nil },
	}
}

var challenge = credentials.Challenge{ID: "1", Endpoint: "injector:7070", Realm: "ouinet"}

func TestPrompter_UserAndPassword(t *testing.T) {
	t.Setenv(CredentialsEnvVar, "")
	var out bytes.Buffer
	p := newTestPrompter("alice\n", "s3cret", &out)

	got, err := p.Prompt(context.Background(), challenge)

	require.NoError(t, err)
	assert.Equal(t, "alice:s3cret", got)
	assert.Contains(t, out.String(), "injector:7070")
	assert.Contains(t, out.String(), "ouinet")
}

func TestPrompter_EmptyUsernameDeclines(t *testing.T) {
	t.Setenv(CredentialsEnvVar, "")
	p := newTestPrompter("\n", "ignored", &bytes.Buffer{})

	got, err := p.Prompt(context.Background(), challenge)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPrompter_PreviousFailedMentionsRejection(t *testing.T) {
	t.Setenv(CredentialsEnvVar, "env:cred")
	var out bytes.Buffer
	p := newTestPrompter("bob\n", "pw", &out)

	ch := challenge
	ch.PreviousFailed = true
	got, err := p.Prompt(context.Background(), ch)

	require.NoError(t, err)
	assert.Equal(t, "bob:pw", got)
	assert.Contains(t, out.String(), "rejected")
}

func TestPrompter_EnvCredential(t *testing.T) {
	t.Setenv(CredentialsEnvVar, "env:cred")
	p := newTestPrompter("", "", &bytes.Buffer{})
	p.interactive = func() bool { return false }

	got, err := p.Prompt(context.Background(), challenge)

	require.NoError(t, err)
	assert.Equal(t, "env:cred", got)
}

func TestPrompter_NotInteractive(t *testing.T) {
	t.Setenv(CredentialsEnvVar, "")
	p := newTestPrompter("", "", &bytes.Buffer{})
	p.interactive = func() bool { return false }

	_, err := p.Prompt(context.Background(), challenge)
	assert.ErrorIs(t, err, ErrNotInteractive)
}

func TestPrompter_PasswordError(t *testing.T) {
	t.Setenv(CredentialsEnvVar, "")
	p := newTestPrompter("alice\n", "", &bytes.Buffer{})
	boom := errors.New("boom")
	p.readPassword = func() ([]byte, error) { return nil, boom }

	_, err := p.Prompt(context.Background(), challenge)
	assert.ErrorIs(t, err, boom)
}

func TestPrompter_ContextCanceled(t *testing.T) {
	t.Setenv(CredentialsEnvVar, "")
	block := make(chan struct{})
	defer close(block)
	p := newTestPrompter("alice\n", "", &bytes.Buffer{})
	p.readPassword = func() ([]byte, error) { <-block; return nil, nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Prompt(ctx, challenge)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadSecretFrom(t *testing.T) {
	s, err := ReadSecretFrom(strings.NewReader("user:pass\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "user:pass", s.String())
	assert.Equal(t, 9, s.Len())

	s.Clear()
	assert.Empty(t, s.String())

	s, err = ReadSecretFrom(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", s.String())

	_, err = ReadSecretFrom(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadSecretFromEnv(t *testing.T) {
	t.Setenv(CredentialsEnvVar, "")
	assert.Nil(t, ReadSecretFromEnv())

	t.Setenv(CredentialsEnvVar, "a:b")
	assert.Equal(t, "a:b", ReadSecretFromEnv().String())
}
