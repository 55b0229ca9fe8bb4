package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeanhaley32/ouinet-shell/internal/config"
	"github.com/jeanhaley32/ouinet-shell/internal/installdir"
)

// addConfigFlags registers one flag per client setting. Flags override the
// settings file only when given.
func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("cache-type", "", "Cache type (e.g. bep5-http)")
	f.Bool("cache-private", false, "Do not announce cached content")
	f.String("cache-http-public-key", "", "Injector signing public key")
	f.String("cache-static-path", "", "Static cache repository")
	f.String("cache-static-content-path", "", "Static cache content root")
	f.String("injector-ep", "", "Injector endpoint")
	f.String("injector-credentials", "", "Injector credentials (user:password)")
	f.String("injector-tls-cert", "", "File holding the injector TLS certificate (PEM)")
	f.String("tls-ca-cert-store", "", "CA bundle path, or bundled:<name>")
	f.String("listen-on-tcp", "", "HTTP proxy listen endpoint")
	f.String("front-end-ep", "", "Front-end listen endpoint")
	f.String("udp-mux-port", "", "UDP multiplexer port")
	f.String("max-cached-age", "", "Maximum age of cached content")
	f.String("local-domain", "", "Local domain suffix")
	f.String("origin-doh-base", "", "DNS-over-HTTPS base URL for origin access")
	f.StringSlice("bt-bootstrap-extra", nil, "Extra BitTorrent bootstrap node (repeatable)")
	f.Bool("disable-origin-access", false, "Disable direct origin access")
	f.Bool("disable-proxy-access", false, "Disable proxy access")
	f.Bool("disable-injector-access", false, "Disable injector access")
	f.Bool("disable-bridge-announcement", false, "Do not announce as a bridge")
	f.String("engine-log-level", "", "Client log level (silly, debug, verbose, info, warn, error, abort)")
	f.Bool("enable-log-file", false, "Have the client write a log file")
	f.Bool("metrics-enable", false, "Enable client metrics on start")
	f.String("metrics-server-url", "", "Client metrics server URL")
	f.String("metrics-server-token", "", "Client metrics server token")
}

// applyConfigFlags copies every changed config flag into b.
func applyConfigFlags(cmd *cobra.Command, b *config.Builder) error {
	strs := []struct {
		name string
		set  func(string) *config.Builder
	}{
		{"cache-type", b.WithCacheType},
		{"cache-http-public-key", b.WithCacheHTTPPublicKey},
		{"cache-static-path", b.WithCacheStaticPath},
		{"cache-static-content-path", b.WithCacheStaticContentPath},
		{"injector-ep", b.WithInjectorEndpoint},
		{"injector-credentials", b.WithInjectorCredentials},
		{"tls-ca-cert-store", b.WithTLSCACertStore},
		{"listen-on-tcp", b.WithListenEndpoint},
		{"front-end-ep", b.WithFrontEndEndpoint},
		{"udp-mux-port", b.WithUDPMuxPort},
		{"max-cached-age", b.WithMaxCachedAge},
		{"local-domain", b.WithLocalDomain},
		{"origin-doh-base", b.WithOriginDoHBase},
		{"metrics-server-url", b.WithMetricsServerURL},
		{"metrics-server-token", b.WithMetricsServerToken},
	}
	for _, s := range strs {
		if !cmd.Flags().Changed(s.name) {
			continue
		}
		v, err := cmd.Flags().GetString(s.name)
		if err != nil {
			return fmt.Errorf("invalid %s flag: %w", s.name, err)
		}
		s.set(v)
	}

	bools := []struct {
		name string
		set  func(bool) *config.Builder
	}{
		{"cache-private", b.WithCachePrivate},
		{"disable-origin-access", b.WithDisableOriginAccess},
		{"disable-proxy-access", b.WithDisableProxyAccess},
		{"disable-injector-access", b.WithDisableInjectorAccess},
		{"disable-bridge-announcement", b.WithDisableBridgeAnnouncement},
		{"enable-log-file", b.WithEnableLogFile},
		{"metrics-enable", b.WithMetricsEnabled},
	}
	for _, s := range bools {
		if !cmd.Flags().Changed(s.name) {
			continue
		}
		v, err := cmd.Flags().GetBool(s.name)
		if err != nil {
			return fmt.Errorf("invalid %s flag: %w", s.name, err)
		}
		s.set(v)
	}

	if cmd.Flags().Changed("bt-bootstrap-extra") {
		nodes, err := cmd.Flags().GetStringSlice("bt-bootstrap-extra")
		if err != nil {
			return fmt.Errorf("invalid bt-bootstrap-extra flag: %w", err)
		}
		b.WithBTBootstrapExtras(nodes...)
	}

	if cmd.Flags().Changed("injector-tls-cert") {
		path, err := cmd.Flags().GetString("injector-tls-cert")
		if err != nil {
			return fmt.Errorf("invalid injector-tls-cert flag: %w", err)
		}
		pem, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read injector TLS certificate: %w", err)
		}
		b.WithInjectorTLSCert(string(pem))
	}

	if cmd.Flags().Changed("engine-log-level") {
		raw, err := cmd.Flags().GetString("engine-log-level")
		if err != nil {
			return fmt.Errorf("invalid engine-log-level flag: %w", err)
		}
		level, err := config.ParseLogLevel(raw)
		if err != nil {
			return err
		}
		b.WithLogLevel(level)
	}

	return nil
}

// settings is the layered result of env files, the settings file and flags.
type settings struct {
	installDir string
	exists     bool
	file       *config.File
}

// loadSettings loads env files and the settings file, then resolves the
// install directory: --install-dir, install_dir from the file,
// $OUINET_SHELL_HOME, default.
func loadSettings(cmd *cobra.Command) (*settings, error) {
	envFiles, err := cmd.Flags().GetStringSlice("env-file")
	if err != nil {
		return nil, fmt.Errorf("invalid env-file flag: %w", err)
	}
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	resolver, err := installdir.NewResolver()
	if err != nil {
		return nil, fmt.Errorf("failed to create path resolver: %w", err)
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("invalid config flag: %w", err)
	}
	explicitConfig := configPath != ""
	if !explicitConfig {
		configPath = resolver.DefaultConfigFile()
	}

	s := &settings{}
	file, err := config.LoadFile(configPath)
	switch {
	case err == nil:
		s.file = file
		slog.Debug("Loaded settings file", slog.String("path", configPath))
	case !explicitConfig && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	explicitDir, err := cmd.Flags().GetString("install-dir")
	if err != nil {
		return nil, fmt.Errorf("invalid install-dir flag: %w", err)
	}
	if explicitDir == "" && s.file != nil {
		explicitDir = s.file.InstallDir
	}
	s.installDir, s.exists = resolver.Resolve(explicitDir)
	return s, nil
}

// newBuilder layers the settings file and flags over a fresh builder.
func (s *settings) newBuilder(cmd *cobra.Command, materializer config.Materializer, authority config.RootCertSource) (*config.Builder, error) {
	b := config.NewBuilder(s.installDir, materializer, authority, slog.Default())
	if s.file != nil {
		s.file.Apply(b)
	}
	if err := applyConfigFlags(cmd, b); err != nil {
		return nil, err
	}
	return b, nil
}
