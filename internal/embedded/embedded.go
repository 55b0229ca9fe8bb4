package embedded

import (
	"embed"
	"io/fs"
)

// Logical names of the bundled assets.
const (
	TLSCACertBundle    = "tls-ca-cert.pem"
	PluggableTransport = "obfs4proxy"
)

//go:embed assets
var bundle embed.FS

// Assets returns the bundled assets keyed by logical name.
func Assets() fs.FS {
	sub, err := fs.Sub(bundle, "assets")
	if err != nil {
		// "assets" is a valid, embedded directory name.
		panic(err)
	}
	return sub
}

// AssetExists reports whether a bundled asset with the given name exists.
func AssetExists(name string) bool {
	_, err := fs.Stat(Assets(), name)
	return err == nil
}
