package engine

import (
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeanhaley32/ouinet-shell/internal/constants"
	"github.com/jeanhaley32/ouinet-shell/internal/logfields"
)

// Default timeouts for the client process
const (
	defaultReadyTimeout = 30 * time.Second
	defaultStopGrace    = 10 * time.Second
	readyPollInterval   = 200 * time.Millisecond
	dialTimeout         = 500 * time.Millisecond
)

// ProcessOptions configures a Process.
type ProcessOptions struct {
	// Binary is the client executable, a path or a name looked up in PATH.
	Binary string

	// ReadyTimeout bounds how long a started client may take to accept
	// connections on its listen endpoint before it is reported Degraded.
	ReadyTimeout time.Duration

	// StopGrace is how long StopClient waits after SIGTERM before SIGKILL.
	StopGrace time.Duration

	// Stdout and Stderr receive the client's output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger
}

type credentialRecord struct {
	endpoint   string
	credential string
}

// Process implements Engine by running the client executable as a child
// process.
type Process struct {
	opts   ProcessOptions
	logger *slog.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	done  chan struct{}
	state atomic.Int32

	caMu        sync.Mutex
	credentials atomic.Pointer[credentialRecord]
	connected   atomic.Bool
	charging    atomic.Bool
}

// NewProcess creates a new process-backed engine.
func NewProcess(opts ProcessOptions) *Process {
	if opts.Binary == "" {
		opts.Binary = constants.EngineName
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyTimeout
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = defaultStopGrace
	}
	p := &Process{
		opts:   opts,
		logger: logfields.Or(opts.Logger).With("component", "engine"),
	}
	p.state.Store(int32(Created))
	return p
}

func (p *Process) StartClient(args, searchPaths []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		p.logger.Warn("Client already running, ignoring start", logfields.PID(p.cmd.Process.Pid))
		return
	}
	if len(args) == 0 {
		p.logger.Error("Refusing to start client without arguments")
		p.state.Store(int32(Failed))
		return
	}

	args = p.withStoredCredentials(args)

	cmd := exec.Command(p.opts.Binary, args[1:]...)
	cmd.Args[0] = args[0]
	cmd.Env = withSearchPath(os.Environ(), searchPaths)
	cmd.Stdout = p.opts.Stdout
	cmd.Stderr = p.opts.Stderr
	setProcessGroup(cmd)

	p.state.Store(int32(Starting))
	if err := cmd.Start(); err != nil {
		p.logger.Error("Failed to start client", logfields.Error(err))
		p.state.Store(int32(Failed))
		return
	}

	done := make(chan struct{})
	p.cmd = cmd
	p.done = done
	p.logger.Info("Client started", logfields.PID(cmd.Process.Pid))

	go p.wait(cmd, done)
	go p.awaitReady(listenEndpoint(args), done)
}

// wait reaps the child and records how it ended.
func (p *Process) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	p.mu.Lock()
	switch State(p.state.Load()) {
	case Stopping:
		p.state.Store(int32(Stopped))
	case Starting:
		p.state.Store(int32(Failed))
	default:
		if err != nil {
			p.state.Store(int32(Failed))
		} else {
			p.state.Store(int32(Stopped))
		}
	}
	if p.cmd == cmd {
		p.cmd = nil
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Info("Client exited", logfields.Error(err))
	} else {
		p.logger.Info("Client exited")
	}
	close(done)
}

// awaitReady polls the listen endpoint until the client accepts
// connections, exits, or the ready timeout passes.
func (p *Process) awaitReady(endpoint string, done <-chan struct{}) {
	deadline := time.Now().Add(p.opts.ReadyTimeout)
	for {
		conn, err := net.DialTimeout("tcp", endpoint, dialTimeout)
		if err == nil {
			conn.Close()
			p.state.CompareAndSwap(int32(Starting), int32(Started))
			return
		}
		if time.Now().After(deadline) {
			if p.state.CompareAndSwap(int32(Starting), int32(Degraded)) {
				p.logger.Warn("Client not accepting connections, reporting degraded",
					logfields.Endpoint(endpoint))
			}
			return
		}
		select {
		case <-done:
			return
		case <-time.After(readyPollInterval):
		}
	}
}

func (p *Process) StopClient() {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	if cmd == nil {
		p.mu.Unlock()
		return
	}
	p.state.Store(int32(Stopping))
	p.mu.Unlock()

	if err := terminate(cmd); err != nil {
		p.logger.Warn("Failed to signal client", logfields.Error(err))
	}

	select {
	case <-done:
		return
	case <-time.After(p.opts.StopGrace):
	}

	p.logger.Warn("Client did not exit in time, killing", logfields.PID(cmd.Process.Pid))
	if err := kill(cmd); err != nil {
		p.logger.Error("Failed to kill client", logfields.Error(err))
	}
	<-done
}

func (p *Process) ClientState() int {
	return int(p.state.Load())
}

func (p *Process) CARootCert(installDir string) string {
	p.caMu.Lock()
	defer p.caMu.Unlock()

	path, err := GenerateCARoot(installDir)
	if err != nil {
		p.logger.Error("Failed to generate CA root certificate",
			logfields.InstallDir(installDir), logfields.Error(err))
	}
	return path
}

// SetCredentialsFor records credentials for the next start. The client
// process has no runtime channel to receive them.
func (p *Process) SetCredentialsFor(endpoint, credential string) {
	p.credentials.Store(&credentialRecord{endpoint: endpoint, credential: credential})
	p.logger.Info("Injector credentials updated", logfields.Endpoint(endpoint))
}

func (p *Process) NotifyConnectivity(connected bool) {
	if p.connected.Swap(connected) != connected {
		p.logger.Debug("Connectivity changed", logfields.Value(connected))
	}
}

func (p *Process) NotifyCharging(charging bool) {
	if p.charging.Swap(charging) != charging {
		p.logger.Debug("Charging state changed", logfields.Value(charging))
	}
}

// withStoredCredentials adds recorded credentials when args carry none.
func (p *Process) withStoredCredentials(args []string) []string {
	rec := p.credentials.Load()
	if rec == nil || rec.credential == "" {
		return args
	}
	for _, arg := range args {
		if strings.HasPrefix(arg, "--injector-credentials=") {
			return args
		}
	}
	return append(append([]string(nil), args...), "--injector-credentials="+rec.credential)
}

// listenEndpoint returns the --listen-on-tcp value from args, or the default.
func listenEndpoint(args []string) string {
	for _, arg := range args {
		if v, ok := strings.CutPrefix(arg, "--listen-on-tcp="); ok && v != "" {
			return v
		}
	}
	return constants.DefaultListenEndpoint
}

// withSearchPath prepends searchPaths to PATH in env, skipping entries
// already present.
func withSearchPath(env []string, searchPaths []string) []string {
	if len(searchPaths) == 0 {
		return env
	}

	out := make([]string, 0, len(env)+1)
	oldPath := ""
	found := false
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, "PATH="); ok {
			oldPath = v
			found = true
			continue
		}
		out = append(out, kv)
	}

	existing := make(map[string]bool)
	for _, dir := range filepath.SplitList(oldPath) {
		existing[dir] = true
	}

	var prefix []string
	for _, dir := range searchPaths {
		if dir == "" || existing[dir] {
			continue
		}
		existing[dir] = true
		prefix = append(prefix, dir)
	}

	newPath := strings.Join(prefix, string(os.PathListSeparator))
	if found && oldPath != "" {
		if newPath != "" {
			newPath += string(os.PathListSeparator)
		}
		newPath += oldPath
	}
	return append(out, "PATH="+newPath)
}
