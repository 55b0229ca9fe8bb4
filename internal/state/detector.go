package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/jeanhaley32/ouinet-shell/internal/constants"
	"github.com/jeanhaley32/ouinet-shell/internal/credentials"
	"github.com/jeanhaley32/ouinet-shell/internal/embedded"
)

// InstallState represents the on-disk state of an install directory.
type InstallState struct {
	InstallDir          string
	DirExists           bool
	ClientConfExists    bool
	CARootCertExists    bool
	CARootKeyExists     bool
	TLSCACertBundle     bool
	InjectorCertExists  bool
	TransportExists     bool
	TransportExecutable bool
	CredentialEndpoint  string
	PidFile             string
	RunningPid          int
}

// Initialized reports whether the directory has been prepared by a build.
func (s *InstallState) Initialized() bool {
	return s.DirExists && s.ClientConfExists
}

// Running reports whether a shell process recorded in the pid file is alive.
func (s *InstallState) Running() bool {
	return s.RunningPid > 0
}

// Detector checks the state of an install directory.
type Detector struct {
	installDir string
}

// NewDetector creates a new state detector.
func NewDetector(installDir string) *Detector {
	return &Detector{installDir: installDir}
}

// Detect checks all aspects of the install directory.
func (d *Detector) Detect() *InstallState {
	state := &InstallState{
		InstallDir: d.installDir,
		PidFile:    filepath.Join(d.installDir, constants.PidFile),
	}

	if info, err := os.Stat(d.installDir); err == nil && info.IsDir() {
		state.DirExists = true
	}
	if !state.DirExists {
		return state
	}

	state.ClientConfExists = d.exists(constants.ClientConfFile)
	state.CARootCertExists = d.exists(constants.CARootCertFile)
	state.CARootKeyExists = d.exists(constants.CARootKeyFile)
	state.TLSCACertBundle = d.exists(filepath.Join(constants.AssetsSubdir, embedded.TLSCACertBundle))
	state.InjectorCertExists = d.exists(constants.InjectorTLSCertFile)
	state.TransportExists, state.TransportExecutable = d.checkTransport()

	store := credentials.NewStore(filepath.Join(d.installDir, constants.CredentialsFile))
	if endpoint, _, ok := store.Record(); ok {
		state.CredentialEndpoint = endpoint
	}

	if pid, err := ReadPid(state.PidFile); err == nil && processAlive(pid) {
		state.RunningPid = pid
	}

	return state
}

func (d *Detector) exists(name string) bool {
	info, err := os.Stat(filepath.Join(d.installDir, name))
	return err == nil && !info.IsDir()
}

// checkTransport checks the materialized pluggable transport and its mode.
func (d *Detector) checkTransport() (exists bool, executable bool) {
	info, err := os.Stat(filepath.Join(d.installDir, embedded.PluggableTransport))
	if err != nil || info.IsDir() {
		return false, false
	}
	return true, info.Mode().Perm()&0111 != 0
}

// WritePid records pid in path.
func WritePid(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), constants.FilePermissions)
}

// ReadPid returns the pid recorded in path.
func ReadPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}

// RemovePid deletes the pid file if it still names pid.
func RemovePid(path string, pid int) error {
	recorded, err := ReadPid(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if recorded != pid {
		return nil
	}
	return os.Remove(path)
}

// processAlive checks pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
