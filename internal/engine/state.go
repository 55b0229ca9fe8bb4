package engine

// State is the engine's running state.
//
// Since the engine can be started several times there are no real initial
// and final states. It should be in Created or Stopped before starting; if
// shortly after a start it is still Created, Failed or Stopped, the start
// can be considered failed.
type State int32

// The integer values are the engine's wire codes and must not change.
const (
	Created  State = 0 // not told to start yet
	Failed   State = 1 // told to start, an error precludes continuing
	Starting State = 2 // told to start, some operations still pending
	Degraded State = 3 // told to start, some operations failed
	Started  State = 4 // told to start, all operations succeeded
	Stopping State = 5 // told to stop, some operations still pending
	Stopped  State = 6 // told to stop, all operations succeeded
)

var stateNames = [...]string{
	Created:  "Created",
	Failed:   "Failed",
	Starting: "Starting",
	Degraded: "Degraded",
	Started:  "Started",
	Stopping: "Stopping",
	Stopped:  "Stopped",
}

// StateFromCode maps an engine state code to a State. Unknown codes are Failed.
func StateFromCode(code int) State {
	if code < int(Created) || code > int(Stopped) {
		return Failed
	}
	return State(code)
}

// Code returns the engine wire code for s.
func (s State) Code() int {
	return int(s)
}

func (s State) String() string {
	if s < Created || s > Stopped {
		return "Unknown"
	}
	return stateNames[s]
}

// Running reports whether the engine is up, fully or partially.
func (s State) Running() bool {
	return s == Started || s == Degraded
}

// Startable reports whether a start may be issued from s.
func (s State) Startable() bool {
	return s == Created || s == Failed || s == Stopped
}
