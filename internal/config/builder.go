package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jeanhaley32/ouinet-shell/internal/constants"
	"github.com/jeanhaley32/ouinet-shell/internal/fsutil"
	"github.com/jeanhaley32/ouinet-shell/internal/logfields"
)

// Materializer copies a bundled asset to a destination path.
type Materializer interface {
	CopyAsset(name, dest string, executable bool) error
}

// RootCertSource returns the CA root certificate path for an install dir.
type RootCertSource interface {
	RootCert(installDir string) string
}

// installLocks serializes builds per install directory across the process.
var installLocks sync.Map

func lockInstall(dir string) func() {
	v, _ := installLocks.LoadOrStore(dir, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Builder accumulates optional settings and builds a Config. Setters are
// not safe for concurrent use; Build is, and runs at most once.
type Builder struct {
	cfg Config

	tlsCACertStoreRef  string
	injectorTLSCertPEM string
	bootstrapExtras    map[string]struct{}

	materializer Materializer
	authority    RootCertSource
	logger       *slog.Logger

	once  sync.Once
	built Config
}

// NewBuilder creates a Builder for installDir. materializer and authority
// may be nil, in which case the steps that need them are skipped.
func NewBuilder(installDir string, materializer Materializer, authority RootCertSource, logger *slog.Logger) *Builder {
	if installDir != "" {
		installDir = filepath.Clean(installDir)
	}
	return &Builder{
		cfg:             Config{installDir: installDir},
		bootstrapExtras: make(map[string]struct{}),
		materializer:    materializer,
		authority:       authority,
		logger:          logfields.Or(logger).With("component", "config"),
	}
}

func (b *Builder) WithCacheType(v string) *Builder {
	b.cfg.cacheType = v
	return b
}

func (b *Builder) WithCachePrivate(v bool) *Builder {
	b.cfg.cachePrivate = v
	return b
}

func (b *Builder) WithCacheHTTPPublicKey(v string) *Builder {
	b.cfg.cacheHTTPPublicKey = v
	return b
}

func (b *Builder) WithCacheStaticPath(v string) *Builder {
	b.cfg.cacheStaticPath = v
	return b
}

func (b *Builder) WithCacheStaticContentPath(v string) *Builder {
	b.cfg.cacheStaticContentPath = v
	return b
}

func (b *Builder) WithInjectorEndpoint(v string) *Builder { b.cfg.injectorEndpoint = v; return b }

func (b *Builder) WithInjectorCredentials(v string) *Builder {
	b.cfg.injectorCredentials = v
	return b
}

// WithInjectorTLSCert sets the injector certificate as PEM content. Build
// writes it under the install directory.
func (b *Builder) WithInjectorTLSCert(pem string) *Builder {
	b.injectorTLSCertPEM = pem
	return b
}

// WithTLSCACertStore sets the CA bundle, either a filesystem path or a
// bundled asset reference of the form "bundled:<name>".
func (b *Builder) WithTLSCACertStore(ref string) *Builder {
	b.tlsCACertStoreRef = ref
	return b
}

func (b *Builder) WithListenEndpoint(v string) *Builder   { b.cfg.listenEndpoint = v; return b }
func (b *Builder) WithFrontEndEndpoint(v string) *Builder { b.cfg.frontEndEndpoint = v; return b }
func (b *Builder) WithUDPMuxPort(v string) *Builder       { b.cfg.udpMuxPort = v; return b }
func (b *Builder) WithMaxCachedAge(v string) *Builder     { b.cfg.maxCachedAge = v; return b }
func (b *Builder) WithLocalDomain(v string) *Builder      { b.cfg.localDomain = v; return b }
func (b *Builder) WithOriginDoHBase(v string) *Builder    { b.cfg.originDoHBase = v; return b }

// WithBTBootstrapExtras adds extra BitTorrent bootstrap nodes. Duplicates
// and empty entries are ignored.
func (b *Builder) WithBTBootstrapExtras(nodes ...string) *Builder {
	for _, node := range nodes {
		if node = strings.TrimSpace(node); node != "" {
			b.bootstrapExtras[node] = struct{}{}
		}
	}
	return b
}

func (b *Builder) WithDisableOriginAccess(v bool) *Builder {
	b.cfg.disableOriginAccess = v
	return b
}

func (b *Builder) WithDisableProxyAccess(v bool) *Builder {
	b.cfg.disableProxyAccess = v
	return b
}

func (b *Builder) WithDisableInjectorAccess(v bool) *Builder {
	b.cfg.disableInjectorAccess = v
	return b
}

func (b *Builder) WithDisableBridgeAnnouncement(v bool) *Builder {
	b.cfg.disableBridgeAnnouncement = v
	return b
}

func (b *Builder) WithLogLevel(v LogLevel) *Builder       { b.cfg.logLevel = v; return b }
func (b *Builder) WithEnableLogFile(v bool) *Builder      { b.cfg.enableLogFile = v; return b }
func (b *Builder) WithMetricsEnabled(v bool) *Builder     { b.cfg.metricsEnabled = v; return b }
func (b *Builder) WithMetricsServerURL(v string) *Builder { b.cfg.metricsServerURL = v; return b }

func (b *Builder) WithMetricsServerToken(v string) *Builder {
	b.cfg.metricsServerToken = v
	return b
}

// Snapshot returns the Config described by the setters without touching
// the filesystem. Fields that only materialization produces are empty and
// a bundled CA bundle reference resolves to nothing.
func (b *Builder) Snapshot() Config {
	cfg := b.cfg
	cfg.btBootstrapExtras = b.sortedExtras()
	if !strings.HasPrefix(b.tlsCACertStoreRef, constants.BundledPrefix) {
		cfg.tlsCACertStorePath = b.tlsCACertStoreRef
	}
	return cfg
}

// Build materializes the install directory and returns the Config. Only
// the first call does any work; later calls return the same Config.
// Builds for the same install directory never run concurrently, even from
// different builders.
func (b *Builder) Build() Config {
	b.once.Do(func() {
		unlock := lockInstall(b.cfg.installDir)
		defer unlock()
		b.built = b.build()
	})
	return b.built
}

func (b *Builder) build() Config {
	cfg := b.Snapshot()
	dir := cfg.installDir
	log := b.logger.With(logfields.InstallDir(dir))

	// 1. install directory
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		log.Error("Failed to create install directory", logfields.Error(err))
	}

	// 2. marker the client checks for at startup
	marker := filepath.Join(dir, constants.ClientConfFile)
	if err := fsutil.Touch(marker, constants.FilePermissions); err != nil {
		log.Warn("Failed to create client config marker", logfields.Path(marker), logfields.Error(err))
	}

	// 3. CA bundle
	cfg.tlsCACertStorePath = b.resolveCACertStore(dir, log)

	// 4. injector certificate
	if b.injectorTLSCertPEM != "" {
		path := filepath.Join(dir, constants.InjectorTLSCertFile)
		if err := fsutil.WriteFileAtomic(path, []byte(b.injectorTLSCertPEM), constants.PublicFilePermissions); err != nil {
			log.Warn("Failed to write injector TLS certificate", logfields.Path(path), logfields.Error(err))
		} else {
			cfg.injectorTLSCertPath = path
		}
	}

	// 5. CA root
	if b.authority != nil {
		cfg.caRootCertPath = b.authority.RootCert(dir)
	} else {
		log.Warn("No certificate authority configured")
	}

	// 6. pluggable transport
	if b.materializer != nil {
		dest := filepath.Join(dir, constants.PluggableTransportName)
		if err := b.materializer.CopyAsset(constants.PluggableTransportName, dest, true); err != nil {
			log.Info("Pluggable transport unavailable", logfields.Error(err))
		} else {
			cfg.pluggableTransportPath = dir
		}
	}

	// 7. cfg is a copy; later setter calls cannot reach it.
	return cfg
}

func (b *Builder) resolveCACertStore(dir string, log *slog.Logger) string {
	name, bundled := strings.CutPrefix(b.tlsCACertStoreRef, constants.BundledPrefix)
	if !bundled {
		return b.tlsCACertStoreRef
	}
	if name == "" || b.materializer == nil {
		log.Warn("Cannot materialize CA bundle", logfields.Asset(b.tlsCACertStoreRef))
		return ""
	}

	dest := filepath.Join(dir, constants.AssetsSubdir, filepath.Base(name))
	if err := b.materializer.CopyAsset(name, dest, false); err != nil {
		log.Warn("CA bundle unavailable", logfields.Asset(name), logfields.Error(err))
		return ""
	}
	return dest
}

func (b *Builder) sortedExtras() []string {
	if len(b.bootstrapExtras) == 0 {
		return nil
	}
	out := make([]string, 0, len(b.bootstrapExtras))
	for node := range b.bootstrapExtras {
		out = append(out, node)
	}
	slices.Sort(out)
	return out
}
