package constants

import "os"

// Engine-related constants
const (
	// EngineName is argv[0] handed to the client on start.
	EngineName = "ouinet-client"

	// DefaultListenEndpoint is where the client serves its HTTP proxy when
	// no --listen-on-tcp is given.
	DefaultListenEndpoint = "127.0.0.1:8077"

	// PluggableTransportName is the bundled transport executable.
	PluggableTransportName = "obfs4proxy"
)

// Install directory layout
const (
	// InstallSubdir is appended to the shell's home to form the default install dir.
	InstallSubdir = "ouinet"

	// ShellConfigDir is the per-user directory holding the default install dir.
	ShellConfigDir = ".ouinet-shell"

	// ClientConfFile must exist in the repo root or the client refuses to start.
	ClientConfFile = "ouinet-client.conf"

	// InjectorTLSCertFile holds the injector certificate given as PEM content.
	InjectorTLSCertFile = "injector-tls-cert.pem"

	// CARootCertFile is the client's TLS root certificate.
	CARootCertFile = "ssl-ca-cert.pem"

	// CARootKeyFile is the private key matching CARootCertFile.
	CARootKeyFile = "ssl-ca-key.pem"

	// AssetsSubdir holds materialized bundled assets.
	AssetsSubdir = "assets"

	// CredentialsFile is the single-slot injector credential record.
	CredentialsFile = "credentials.txt"

	// PidFile records the pid of a running `ouinet-shell run`.
	PidFile = "ouinet-shell.pid"

	// ConfigFileName is the optional settings file in ShellConfigDir.
	ConfigFileName = "config.yaml"
)

// BundledPrefix marks a reference to a bundled asset rather than a filesystem path.
const BundledPrefix = "bundled:"

// HomeEnvVar overrides the default install directory.
const HomeEnvVar = "OUINET_SHELL_HOME"

// File permissions
const (
	// DirPermissions is the default permission mode for directories.
	DirPermissions os.FileMode = 0755

	// FilePermissions is the default permission mode for sensitive files.
	FilePermissions os.FileMode = 0600

	// PublicFilePermissions is used for materialized, non-secret assets.
	PublicFilePermissions os.FileMode = 0644

	// ExecutablePermissions is used for materialized executables.
	ExecutablePermissions os.FileMode = 0755
)
