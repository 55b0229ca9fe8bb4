package engine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/jeanhaley32/ouinet-shell/internal/constants"
	"github.com/jeanhaley32/ouinet-shell/internal/fsutil"
)

const caValidity = 10 * 365 * 24 * time.Hour

// GenerateCARoot returns the CA root certificate path under installDir,
// creating a self-signed CA with its key when the certificate is missing.
// An existing certificate is never regenerated.
func GenerateCARoot(installDir string) (string, error) {
	certPath := filepath.Join(installDir, constants.CARootCertFile)
	if fsutil.NonEmptyFile(certPath) {
		return certPath, nil
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return certPath, fmt.Errorf("failed to generate CA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return certPath, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "Ouinet Client Root CA",
			Organization: []string{"Ouinet"},
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(caValidity),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return certPath, fmt.Errorf("failed to create CA certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return certPath, fmt.Errorf("failed to marshal CA key: %w", err)
	}

	// Key first: a certificate without its key would never be regenerated.
	keyPath := filepath.Join(installDir, constants.CARootKeyFile)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := fsutil.WriteFileAtomic(keyPath, keyPEM, constants.FilePermissions); err != nil {
		return certPath, fmt.Errorf("failed to write CA key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := fsutil.WriteFileAtomic(certPath, certPEM, constants.PublicFilePermissions); err != nil {
		return certPath, fmt.Errorf("failed to write CA certificate: %w", err)
	}

	return certPath, nil
}
