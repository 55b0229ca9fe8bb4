package engine

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanhaley32/ouinet-shell/internal/constants"
)

func TestWithSearchPath_PrependsMissingEntries(t *testing.T) {
	sep := string(os.PathListSeparator)
	env := []string{"HOME=/home/u", "PATH=/usr/bin" + sep + "/bin"}

	got := withSearchPath(env, []string{"/data/ouinet", "/usr/bin", "/data/ouinet"})

	assert.Contains(t, got, "HOME=/home/u")
	assert.Contains(t, got, "PATH=/data/ouinet"+sep+"/usr/bin"+sep+"/bin")
}

func TestWithSearchPath_NoSearchPaths(t *testing.T) {
	env := []string{"PATH=/usr/bin"}
	assert.Equal(t, env, withSearchPath(env, nil))
}

func TestWithSearchPath_NoExistingPath(t *testing.T) {
	got := withSearchPath([]string{"HOME=/home/u"}, []string{"/data/ouinet"})
	assert.Equal(t, []string{"HOME=/home/u", "PATH=/data/ouinet"}, got)
}

func TestListenEndpoint(t *testing.T) {
	assert.Equal(t, constants.DefaultListenEndpoint, listenEndpoint([]string{"ouinet-client", "--repo=/x"}))
	assert.Equal(t, "127.0.0.1:8888", listenEndpoint([]string{"ouinet-client", "--listen-on-tcp=127.0.0.1:8888"}))
}

func TestProcess_WithStoredCredentials(t *testing.T) {
	p := NewProcess(ProcessOptions{})
	args := []string{"ouinet-client", "--repo=/x"}

	assert.Equal(t, args, p.withStoredCredentials(args))

	p.SetCredentialsFor("injector:7070", "user:pass")
	assert.Equal(t, []string{"ouinet-client", "--repo=/x", "--injector-credentials=user:pass"},
		p.withStoredCredentials(args))

	explicit := []string{"ouinet-client", "--injector-credentials=other"}
	assert.Equal(t, explicit, p.withStoredCredentials(explicit))
}

func TestProcess_StopBeforeStartIsSafe(t *testing.T) {
	p := NewProcess(ProcessOptions{})
	p.StopClient()
	assert.Equal(t, Created, StateFromCode(p.ClientState()))
}

func TestProcess_MissingBinaryFails(t *testing.T) {
	p := NewProcess(ProcessOptions{Binary: filepath.Join(t.TempDir(), "does-not-exist")})
	p.StartClient([]string{"ouinet-client", "--repo=/x"}, nil)
	assert.Equal(t, Failed, StateFromCode(p.ClientState()))
}

func TestProcess_StartStopLifecycle(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("requires a POSIX shell")
	}
	script := filepath.Join(t.TempDir(), "fake-client")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 30\n"), 0755))

	p := NewProcess(ProcessOptions{
		Binary:       script,
		ReadyTimeout: 50 * time.Millisecond,
		StopGrace:    time.Second,
	})

	// The fake client never listens, so after the ready timeout it is Degraded.
	p.StartClient([]string{"ouinet-client", "--listen-on-tcp=127.0.0.1:1"}, nil)
	p.StartClient([]string{"ouinet-client"}, nil)

	require.Eventually(t, func() bool {
		return StateFromCode(p.ClientState()) == Degraded
	}, 5*time.Second, 10*time.Millisecond)

	p.StopClient()
	assert.Equal(t, Stopped, StateFromCode(p.ClientState()))
}

func TestGenerateCARoot_Idempotent(t *testing.T) {
	dir := t.TempDir()

	path, err := GenerateCARoot(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, constants.CARootCertFile), path)

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	block, _ := pem.Decode(first)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.True(t, cert.IsCA)

	keyInfo, err := os.Stat(filepath.Join(dir, constants.CARootKeyFile))
	require.NoError(t, err)
	assert.Equal(t, constants.FilePermissions, keyInfo.Mode().Perm())

	again, err := GenerateCARoot(dir)
	require.NoError(t, err)
	assert.Equal(t, path, again)

	second, err := os.ReadFile(again)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
