// Package config builds the immutable run configuration for the client.
//
// A Config is produced once per installation by a Builder. Building
// materializes everything the client needs on disk (marker file, CA bundle,
// injector certificate, CA root, pluggable transport) and never fails: a
// step that cannot complete leaves its field empty and the client decides
// whether it can run without it.
package config

import "slices"

// Config is a built, read-only run configuration. The zero value is an
// empty configuration with no install directory.
type Config struct {
	installDir string

	cacheType              string
	cachePrivate           bool
	cacheHTTPPublicKey     string
	cacheStaticPath        string
	cacheStaticContentPath string

	injectorEndpoint    string
	injectorCredentials string
	injectorTLSCertPath string

	tlsCACertStorePath     string
	caRootCertPath         string
	pluggableTransportPath string

	listenEndpoint   string
	frontEndEndpoint string
	udpMuxPort       string
	maxCachedAge     string
	localDomain      string
	originDoHBase    string

	btBootstrapExtras []string

	disableOriginAccess       bool
	disableProxyAccess        bool
	disableInjectorAccess     bool
	disableBridgeAnnouncement bool

	logLevel      LogLevel
	enableLogFile bool

	metricsEnabled     bool
	metricsServerURL   string
	metricsServerToken string
}

func (c Config) InstallDir() string             { return c.installDir }
func (c Config) CacheType() string              { return c.cacheType }
func (c Config) CachePrivate() bool             { return c.cachePrivate }
func (c Config) CacheHTTPPublicKey() string     { return c.cacheHTTPPublicKey }
func (c Config) CacheStaticPath() string        { return c.cacheStaticPath }
func (c Config) CacheStaticContentPath() string { return c.cacheStaticContentPath }
func (c Config) InjectorEndpoint() string       { return c.injectorEndpoint }
func (c Config) InjectorCredentials() string    { return c.injectorCredentials }

// InjectorTLSCertPath is where the injector certificate given to the
// builder was written, or empty.
func (c Config) InjectorTLSCertPath() string { return c.injectorTLSCertPath }

// TLSCACertStorePath is the resolved CA bundle path, or empty when none was
// configured or a bundled one could not be materialized.
func (c Config) TLSCACertStorePath() string { return c.tlsCACertStorePath }

func (c Config) CARootCertPath() string { return c.caRootCertPath }

// PluggableTransportPath is the directory holding the materialized
// transport executable, or empty.
func (c Config) PluggableTransportPath() string { return c.pluggableTransportPath }

func (c Config) ListenEndpoint() string   { return c.listenEndpoint }
func (c Config) FrontEndEndpoint() string { return c.frontEndEndpoint }
func (c Config) UDPMuxPort() string       { return c.udpMuxPort }
func (c Config) MaxCachedAge() string     { return c.maxCachedAge }
func (c Config) LocalDomain() string      { return c.localDomain }
func (c Config) OriginDoHBase() string    { return c.originDoHBase }

// BTBootstrapExtras returns a sorted copy of the extra BitTorrent
// bootstrap nodes.
func (c Config) BTBootstrapExtras() []string { return slices.Clone(c.btBootstrapExtras) }

func (c Config) DisableOriginAccess() bool       { return c.disableOriginAccess }
func (c Config) DisableProxyAccess() bool        { return c.disableProxyAccess }
func (c Config) DisableInjectorAccess() bool     { return c.disableInjectorAccess }
func (c Config) DisableBridgeAnnouncement() bool { return c.disableBridgeAnnouncement }
func (c Config) LogLevel() LogLevel              { return c.logLevel }
func (c Config) EnableLogFile() bool             { return c.enableLogFile }
func (c Config) MetricsEnabled() bool            { return c.metricsEnabled }
func (c Config) MetricsServerURL() string        { return c.metricsServerURL }
func (c Config) MetricsServerToken() string      { return c.metricsServerToken }
