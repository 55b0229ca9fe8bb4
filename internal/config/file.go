package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File is the on-disk settings file. Every field is optional; unset fields
// leave the builder untouched.
type File struct {
	InstallDir string `yaml:"install_dir"`

	Cache struct {
		Type              string `yaml:"type"`
		Private           *bool  `yaml:"private"`
		HTTPPublicKey     string `yaml:"http_public_key"`
		StaticPath        string `yaml:"static_path"`
		StaticContentPath string `yaml:"static_content_path"`
	} `yaml:"cache"`

	Injector struct {
		Endpoint    string `yaml:"endpoint"`
		Credentials string `yaml:"credentials"`
		TLSCert     string `yaml:"tls_cert"`
	} `yaml:"injector"`

	TLSCACertStore string `yaml:"tls_ca_cert_store"`

	ListenOnTCP   string   `yaml:"listen_on_tcp"`
	FrontEndEP    string   `yaml:"front_end_ep"`
	UDPMuxPort    string   `yaml:"udp_mux_port"`
	MaxCachedAge  string   `yaml:"max_cached_age"`
	LocalDomain   string   `yaml:"local_domain"`
	OriginDoHBase string   `yaml:"origin_doh_base"`
	BTBootstrap   []string `yaml:"bt_bootstrap_extras"`

	Disable struct {
		OriginAccess       *bool `yaml:"origin_access"`
		ProxyAccess        *bool `yaml:"proxy_access"`
		InjectorAccess     *bool `yaml:"injector_access"`
		BridgeAnnouncement *bool `yaml:"bridge_announcement"`
	} `yaml:"disable"`

	LogLevel      string `yaml:"log_level"`
	EnableLogFile *bool  `yaml:"enable_log_file"`

	Metrics struct {
		Enabled     *bool  `yaml:"enabled"`
		ServerURL   string `yaml:"server_url"`
		ServerToken string `yaml:"server_token"`
	} `yaml:"metrics"`
}

// LoadFile reads a YAML settings file. ${VAR} references are expanded from
// the environment before parsing.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if _, err := ParseLogLevel(f.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &f, nil
}

// LoadEnvFiles loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Apply copies the file's settings into b.
func (f *File) Apply(b *Builder) *Builder {
	setString(f.Cache.Type, b.WithCacheType)
	setBool(f.Cache.Private, b.WithCachePrivate)
	setString(f.Cache.HTTPPublicKey, b.WithCacheHTTPPublicKey)
	setString(f.Cache.StaticPath, b.WithCacheStaticPath)
	setString(f.Cache.StaticContentPath, b.WithCacheStaticContentPath)

	setString(f.Injector.Endpoint, b.WithInjectorEndpoint)
	setString(f.Injector.Credentials, b.WithInjectorCredentials)
	setString(f.Injector.TLSCert, b.WithInjectorTLSCert)

	setString(f.TLSCACertStore, b.WithTLSCACertStore)

	setString(f.ListenOnTCP, b.WithListenEndpoint)
	setString(f.FrontEndEP, b.WithFrontEndEndpoint)
	setString(f.UDPMuxPort, b.WithUDPMuxPort)
	setString(f.MaxCachedAge, b.WithMaxCachedAge)
	setString(f.LocalDomain, b.WithLocalDomain)
	setString(f.OriginDoHBase, b.WithOriginDoHBase)
	b.WithBTBootstrapExtras(f.BTBootstrap...)

	setBool(f.Disable.OriginAccess, b.WithDisableOriginAccess)
	setBool(f.Disable.ProxyAccess, b.WithDisableProxyAccess)
	setBool(f.Disable.InjectorAccess, b.WithDisableInjectorAccess)
	setBool(f.Disable.BridgeAnnouncement, b.WithDisableBridgeAnnouncement)

	if level, err := ParseLogLevel(f.LogLevel); err == nil && level != "" {
		b.WithLogLevel(level)
	}
	setBool(f.EnableLogFile, b.WithEnableLogFile)

	setBool(f.Metrics.Enabled, b.WithMetricsEnabled)
	setString(f.Metrics.ServerURL, b.WithMetricsServerURL)
	setString(f.Metrics.ServerToken, b.WithMetricsServerToken)
	return b
}

func setString(v string, set func(string) *Builder) {
	if v != "" {
		set(v)
	}
}

func setBool(v *bool, set func(bool) *Builder) {
	if v != nil {
		set(*v)
	}
}
