// Package args turns a Config into the client's command line.
package args

import (
	"github.com/jeanhaley32/ouinet-shell/internal/config"
	"github.com/jeanhaley32/ouinet-shell/internal/constants"
)

// Flag names understood by the client.
const (
	FlagRepo                      = "--repo"
	FlagListenOnTCP               = "--listen-on-tcp"
	FlagFrontEndEP                = "--front-end-ep"
	FlagInjectorEP                = "--injector-ep"
	FlagUDPMuxPort                = "--udp-mux-port"
	FlagMaxCachedAge              = "--max-cached-age"
	FlagLocalDomain               = "--local-domain"
	FlagOriginDoHBase             = "--origin-doh-base"
	FlagInjectorCredentials       = "--injector-credentials"
	FlagCacheHTTPPublicKey        = "--cache-http-public-key"
	FlagTLSCACertStorePath        = "--tls-ca-cert-store-path"
	FlagInjectorTLSCertFile       = "--injector-tls-cert-file"
	FlagCacheType                 = "--cache-type"
	FlagCacheStaticRepo           = "--cache-static-repo"
	FlagCacheStaticRoot           = "--cache-static-root"
	FlagLogLevel                  = "--log-level"
	FlagEnableLogFile             = "--enable-log-file"
	FlagDisableOriginAccess       = "--disable-origin-access"
	FlagDisableProxyAccess        = "--disable-proxy-access"
	FlagDisableInjectorAccess     = "--disable-injector-access"
	FlagCachePrivate              = "--cache-private"
	FlagDisableBridgeAnnouncement = "--disable-bridge-announcement"
	FlagBTBootstrapExtra          = "--bt-bootstrap-extra"
	FlagMetricsEnableOnStart      = "--metrics-enable-on-start"
	FlagMetricsServerURL          = "--metrics-server-url"
	FlagMetricsServerToken        = "--metrics-server-token"
)

// ToArgs returns the client argument vector for cfg and the directories to
// add to the client's executable search path. The vector always starts
// with the engine name and --repo; the remaining flags follow in a fixed
// order. Empty values and false booleans are omitted.
func ToArgs(cfg config.Config) (args, searchPaths []string) {
	args = []string{constants.EngineName, FlagRepo + "=" + cfg.InstallDir()}

	valued := func(flag, value string) {
		if value != "" {
			args = append(args, flag+"="+value)
		}
	}
	bare := func(flag string, set bool) {
		if set {
			args = append(args, flag)
		}
	}

	valued(FlagListenOnTCP, cfg.ListenEndpoint())
	valued(FlagFrontEndEP, cfg.FrontEndEndpoint())
	valued(FlagInjectorEP, cfg.InjectorEndpoint())
	valued(FlagUDPMuxPort, cfg.UDPMuxPort())
	valued(FlagMaxCachedAge, cfg.MaxCachedAge())
	valued(FlagLocalDomain, cfg.LocalDomain())
	valued(FlagOriginDoHBase, cfg.OriginDoHBase())
	valued(FlagInjectorCredentials, cfg.InjectorCredentials())
	valued(FlagCacheHTTPPublicKey, cfg.CacheHTTPPublicKey())
	valued(FlagTLSCACertStorePath, cfg.TLSCACertStorePath())
	valued(FlagInjectorTLSCertFile, cfg.InjectorTLSCertPath())
	valued(FlagCacheType, cfg.CacheType())
	valued(FlagCacheStaticRepo, cfg.CacheStaticPath())
	valued(FlagCacheStaticRoot, cfg.CacheStaticContentPath())
	valued(FlagLogLevel, cfg.LogLevel().String())

	bare(FlagEnableLogFile, cfg.EnableLogFile())
	bare(FlagDisableOriginAccess, cfg.DisableOriginAccess())
	bare(FlagDisableProxyAccess, cfg.DisableProxyAccess())
	bare(FlagDisableInjectorAccess, cfg.DisableInjectorAccess())
	bare(FlagCachePrivate, cfg.CachePrivate())
	bare(FlagDisableBridgeAnnouncement, cfg.DisableBridgeAnnouncement())

	for _, node := range cfg.BTBootstrapExtras() {
		valued(FlagBTBootstrapExtra, node)
	}

	bare(FlagMetricsEnableOnStart, cfg.MetricsEnabled())
	valued(FlagMetricsServerURL, cfg.MetricsServerURL())
	valued(FlagMetricsServerToken, cfg.MetricsServerToken())

	searchPaths = []string{}
	if dir := cfg.PluggableTransportPath(); dir != "" {
		searchPaths = append(searchPaths, dir)
	}
	return args, searchPaths
}
