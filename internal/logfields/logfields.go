package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyState      = "state"
	KeyFromState  = "from"
	KeyToState    = "to"
	KeyPath       = "path"
	KeyAsset      = "asset"
	KeyInstallDir = "install_dir"
	KeyEndpoint   = "endpoint"
	KeySignal     = "signal"
	KeyValue      = "value"
	KeyChallenge  = "challenge_id"
	KeyPID        = "pid"
	KeyError      = "error"
)

func State(s string) slog.Attr      { return slog.String(KeyState, s) }
func FromState(s string) slog.Attr  { return slog.String(KeyFromState, s) }
func ToState(s string) slog.Attr    { return slog.String(KeyToState, s) }
func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func Asset(name string) slog.Attr   { return slog.String(KeyAsset, name) }
func InstallDir(d string) slog.Attr { return slog.String(KeyInstallDir, d) }
func Endpoint(e string) slog.Attr   { return slog.String(KeyEndpoint, e) }
func Signal(s string) slog.Attr     { return slog.String(KeySignal, s) }
func Value(v bool) slog.Attr        { return slog.Bool(KeyValue, v) }
func Challenge(id string) slog.Attr { return slog.String(KeyChallenge, id) }
func PID(pid int) slog.Attr         { return slog.Int(KeyPID, pid) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Or returns logger, or slog.Default() when logger is nil.
func Or(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
