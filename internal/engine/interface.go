package engine

// Engine is the narrow call contract to the caching client. Every method
// maps one-to-one onto a native entry point; implementations must be safe
// for concurrent use.
type Engine interface {
	// StartClient asks the engine to start with the given argument vector.
	// searchPaths are prepended to the executable search path the engine
	// uses to find helpers such as pluggable transports. It returns once
	// the start has been dispatched.
	StartClient(args, searchPaths []string)

	// StopClient stops the engine and returns once its resources are freed.
	// It is safe to call when the engine was never started.
	StopClient()

	// ClientState returns the engine's state code (see State).
	ClientState() int

	// CARootCert returns the path of the CA root certificate under
	// installDir, generating it when it does not exist.
	CARootCert(installDir string) string

	// SetCredentialsFor hands injector credentials to the engine.
	SetCredentialsFor(endpoint, credential string)

	// NotifyConnectivity and NotifyCharging relay host state. They must
	// not block.
	NotifyConnectivity(connected bool)
	NotifyCharging(charging bool)
}
