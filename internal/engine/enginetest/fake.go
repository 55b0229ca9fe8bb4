// Package enginetest provides an in-memory engine.Engine for tests.
package enginetest

import (
	"path/filepath"
	"sync"

	"github.com/jeanhaley32/ouinet-shell/internal/constants"
	"github.com/jeanhaley32/ouinet-shell/internal/engine"
)

// StartCall records one StartClient invocation.
type StartCall struct {
	Args        []string
	SearchPaths []string
}

// Fake is a scripted engine.Engine. State codes are served from a script
// queue when one is set, otherwise from the current state, which
// StartClient and StopClient move the way a well-behaved engine would.
type Fake struct {
	mu sync.Mutex

	state   engine.State
	script  []int
	starts  []StartCall
	stops   int
	caCalls map[string]int
	creds   [][2]string
	conn    []bool
	charge  []bool

	// StartTo is the state StartClient moves to. Defaults to Started.
	StartTo engine.State

	// StopBlock, when set, is waited on inside StopClient.
	StopBlock chan struct{}

	// NotifyBlock, when set, is waited on inside the Notify methods.
	NotifyBlock chan struct{}
}

// New returns a Fake in the Created state.
func New() *Fake {
	return &Fake{
		state:   engine.Created,
		caCalls: make(map[string]int),
		StartTo: engine.Started,
	}
}

// Script queues state codes returned by successive ClientState calls. Once
// the queue drains, the last code keeps being returned.
func (f *Fake) Script(codes ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, codes...)
}

// SetState forces the current state.
func (f *Fake) SetState(s engine.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = nil
	f.state = s
}

func (f *Fake) StartClient(args, searchPaths []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, StartCall{
		Args:        append([]string(nil), args...),
		SearchPaths: append([]string(nil), searchPaths...),
	})
	f.state = f.StartTo
}

func (f *Fake) StopClient() {
	if f.StopBlock != nil {
		<-f.StopBlock
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = engine.Stopped
}

func (f *Fake) ClientState() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.script) > 0 {
		code := f.script[0]
		if len(f.script) > 1 {
			f.script = f.script[1:]
		} else {
			f.script = nil
			f.state = engine.StateFromCode(code)
		}
		return code
	}
	return f.state.Code()
}

func (f *Fake) CARootCert(installDir string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.caCalls[installDir]++
	return filepath.Join(installDir, constants.CARootCertFile)
}

func (f *Fake) SetCredentialsFor(endpoint, credential string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = append(f.creds, [2]string{endpoint, credential})
}

func (f *Fake) NotifyConnectivity(connected bool) {
	if f.NotifyBlock != nil {
		<-f.NotifyBlock
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conn = append(f.conn, connected)
}

func (f *Fake) NotifyCharging(charging bool) {
	if f.NotifyBlock != nil {
		<-f.NotifyBlock
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charge = append(f.charge, charging)
}

// Starts returns the recorded StartClient calls.
func (f *Fake) Starts() []StartCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StartCall(nil), f.starts...)
}

// Stops returns how many times StopClient ran.
func (f *Fake) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// CACalls returns how many times CARootCert ran for installDir.
func (f *Fake) CACalls(installDir string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.caCalls[installDir]
}

// Credentials returns the recorded SetCredentialsFor calls.
func (f *Fake) Credentials() [][2]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]string(nil), f.creds...)
}

// Connectivity returns the recorded NotifyConnectivity values.
func (f *Fake) Connectivity() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.conn...)
}

// Charging returns the recorded NotifyCharging values.
func (f *Fake) Charging() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.charge...)
}

var _ engine.Engine = (*Fake)(nil)
