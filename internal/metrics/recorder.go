// Package metrics provides observability hooks for the shell.
//
// Components receive a Recorder through their constructors. NoopRecorder is
// the default so callers never nil-check; the CLI swaps in a
// PrometheusRecorder when a metrics listener is configured.
package metrics

// Recorder defines observability hooks for lifecycle and forwarding events.
type Recorder interface {
	IncStateTransition(from, to string)
	IncEngineCall(call string)
	IncSignalForwarded(kind string)
	IncSignalDropped(kind string)
	IncAssetMaterialized(asset string, success bool)
	IncChallenge(outcome string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncStateTransition(string, string) {}
func (NoopRecorder) IncEngineCall(string)              {}
func (NoopRecorder) IncSignalForwarded(string)         {}
func (NoopRecorder) IncSignalDropped(string)           {}
func (NoopRecorder) IncAssetMaterialized(string, bool) {}
func (NoopRecorder) IncChallenge(string)               {}

// Or returns r, or NoopRecorder when r is nil.
func Or(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
