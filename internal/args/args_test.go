package args

import (
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanhaley32/ouinet-shell/internal/assets"
	"github.com/jeanhaley32/ouinet-shell/internal/config"
)

func newBuilder() *config.Builder {
	return config.NewBuilder("/data/ouinet", nil, nil, nil)
}

func flagNames(args []string) []string {
	names := make([]string, 0, len(args))
	for _, a := range args[1:] {
		name, _, _ := strings.Cut(a, "=")
		names = append(names, name)
	}
	return names
}

func count(args []string, want string) int {
	n := 0
	for _, a := range args {
		if a == want {
			n++
		}
	}
	return n
}

func TestToArgs_Minimal(t *testing.T) {
	args, searchPaths := ToArgs(newBuilder().Snapshot())

	assert.Equal(t, []string{"ouinet-client", "--repo=/data/ouinet"}, args)
	assert.NotNil(t, searchPaths)
	assert.Empty(t, searchPaths)
}

func TestToArgs_ZeroConfig(t *testing.T) {
	args, _ := ToArgs(config.Config{})
	assert.Equal(t, []string{"ouinet-client", "--repo="}, args)
}

func TestToArgs_FullOrder(t *testing.T) {
	cfg := newBuilder().
		WithMetricsServerToken("tok").
		WithMetricsServerURL("https://m.example").
		WithMetricsEnabled(true).
		WithBTBootstrapExtras("example.com").
		WithDisableBridgeAnnouncement(true).
		WithCachePrivate(true).
		WithDisableInjectorAccess(true).
		WithDisableProxyAccess(true).
		WithDisableOriginAccess(true).
		WithEnableLogFile(true).
		WithLogLevel(config.LogVerbose).
		WithCacheStaticContentPath("/static/.ouinet").
		WithCacheStaticPath("/static").
		WithCacheType("bep5-http").
		WithTLSCACertStore("/etc/ca.pem").
		WithCacheHTTPPublicKey("pubkey").
		WithInjectorCredentials("user:pass").
		WithOriginDoHBase("https://doh.example").
		WithLocalDomain("local").
		WithMaxCachedAge("120").
		WithUDPMuxPort("28729").
		WithInjectorEndpoint("injector:7070").
		WithFrontEndEndpoint("127.0.0.1:8078").
		WithListenEndpoint("127.0.0.1:8077").
		Snapshot()

	args, _ := ToArgs(cfg)

	assert.Equal(t, []string{
		"ouinet-client",
		"--repo=/data/ouinet",
		"--listen-on-tcp=127.0.0.1:8077",
		"--front-end-ep=127.0.0.1:8078",
		"--injector-ep=injector:7070",
		"--udp-mux-port=28729",
		"--max-cached-age=120",
		"--local-domain=local",
		"--origin-doh-base=https://doh.example",
		"--injector-credentials=user:pass",
		"--cache-http-public-key=pubkey",
		"--tls-ca-cert-store-path=/etc/ca.pem",
		"--cache-type=bep5-http",
		"--cache-static-repo=/static",
		"--cache-static-root=/static/.ouinet",
		"--log-level=VERBOSE",
		"--enable-log-file",
		"--disable-origin-access",
		"--disable-proxy-access",
		"--disable-injector-access",
		"--cache-private",
		"--disable-bridge-announcement",
		"--bt-bootstrap-extra=example.com",
		"--metrics-enable-on-start",
		"--metrics-server-url=https://m.example",
		"--metrics-server-token=tok",
	}, args)
}

func TestToArgs_Scenario(t *testing.T) {
	cfg := newBuilder().
		WithCacheType("bep5-http").
		WithListenEndpoint("127.0.0.1:8888").
		WithCachePrivate(true).
		Snapshot()

	args, _ := ToArgs(cfg)

	assert.Contains(t, args, "--cache-type=bep5-http")
	assert.Contains(t, args, "--listen-on-tcp=127.0.0.1:8888")
	assert.Contains(t, args, "--cache-private")
	for _, a := range args {
		assert.False(t, strings.HasPrefix(a, FlagCacheHTTPPublicKey), a)
	}
}

func TestToArgs_BooleanFlags(t *testing.T) {
	type setter func(*config.Builder, bool) *config.Builder
	cases := map[string]setter{
		FlagEnableLogFile:             (*config.Builder).WithEnableLogFile,
		FlagDisableOriginAccess:       (*config.Builder).WithDisableOriginAccess,
		FlagDisableProxyAccess:        (*config.Builder).WithDisableProxyAccess,
		FlagDisableInjectorAccess:     (*config.Builder).WithDisableInjectorAccess,
		FlagCachePrivate:              (*config.Builder).WithCachePrivate,
		FlagDisableBridgeAnnouncement: (*config.Builder).WithDisableBridgeAnnouncement,
		FlagMetricsEnableOnStart:      (*config.Builder).WithMetricsEnabled,
	}

	for flag, set := range cases {
		t.Run(flag, func(t *testing.T) {
			off, _ := ToArgs(set(newBuilder(), false).Snapshot())
			assert.Zero(t, count(off, flag))
			for _, a := range off {
				assert.False(t, strings.HasPrefix(a, flag), a)
			}

			on, _ := ToArgs(set(newBuilder(), true).Snapshot())
			assert.Equal(t, 1, count(on, flag))
		})
	}
}

func TestToArgs_BootstrapExtrasOneFlagEach(t *testing.T) {
	cfg := newBuilder().WithBTBootstrapExtras("a.example", "b.example:6882", "192.0.2.1").Snapshot()

	args, _ := ToArgs(cfg)

	var extras []string
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, FlagBTBootstrapExtra+"="); ok {
			extras = append(extras, v)
		}
	}
	assert.ElementsMatch(t, []string{"a.example", "b.example:6882", "192.0.2.1"}, extras)
}

func TestToArgs_EmptyStringsOmitted(t *testing.T) {
	cfg := newBuilder().
		WithCacheType("").
		WithListenEndpoint("").
		WithLogLevel("").
		Snapshot()

	args, _ := ToArgs(cfg)
	assert.Equal(t, []string{"ouinet-client", "--repo=/data/ouinet"}, args)
}

func TestToArgs_HeadInvariant(t *testing.T) {
	builders := []*config.Builder{
		config.NewBuilder("/a", nil, nil, nil),
		config.NewBuilder("/b/c", nil, nil, nil).WithCachePrivate(true).WithBTBootstrapExtras("x"),
		config.NewBuilder("/d", nil, nil, nil).WithMetricsEnabled(true).WithLogLevel(config.LogAbort),
	}
	for _, b := range builders {
		cfg := b.Snapshot()
		args, _ := ToArgs(cfg)
		require.GreaterOrEqual(t, len(args), 2)
		assert.Equal(t, "ouinet-client", args[0])
		assert.Equal(t, "--repo="+cfg.InstallDir(), args[1])
		assert.NotContains(t, flagNames(args)[1:], FlagRepo)
	}
}

func TestToArgs_BuiltConfigPaths(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ouinet")
	mat := assets.NewMaterializer(fstest.MapFS{
		"obfs4proxy":      {Data: []byte("#!/bin/sh\n")},
		"tls-ca-cert.pem": {Data: []byte("X")},
	}, nil, nil)

	cfg := config.NewBuilder(dir, mat, nil, nil).
		WithTLSCACertStore("bundled:tls-ca-cert.pem").
		WithInjectorTLSCert("PEM").
		Build()

	args, searchPaths := ToArgs(cfg)

	assert.Equal(t, []string{dir}, searchPaths)
	assert.Contains(t, args, "--tls-ca-cert-store-path="+filepath.Join(dir, "assets", "tls-ca-cert.pem"))
	assert.Contains(t, args, "--injector-tls-cert-file="+filepath.Join(dir, "injector-tls-cert.pem"))
}

func TestToArgs_Pure(t *testing.T) {
	cfg := newBuilder().WithBTBootstrapExtras("b", "a").WithCacheType("bep5-http").Snapshot()

	first, firstPaths := ToArgs(cfg)
	second, secondPaths := ToArgs(cfg)

	assert.Equal(t, first, second)
	assert.Equal(t, firstPaths, secondPaths)
	assert.Equal(t, []string{"a", "b"}, cfg.BTBootstrapExtras())
}
