package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// IdentityProvider abstracts the citizen-card middleware. The private key
// never leaves the provider; the process only sees certificates and
// signatures.
type IdentityProvider interface {
	Name() string
	Certificate() []byte
	Chain() [][]byte
	Sign(msg []byte) ([]byte, error)
}

// SoftCard is an IdentityProvider backed by an in-process RSA key, for
// running without the physical card reader.
type SoftCard struct {
	name  string
	cert  []byte
	chain [][]byte
	key   *rsa.PrivateKey
}

func NewSoftCard(name string, cert []byte, chain [][]byte, key *rsa.PrivateKey) *SoftCard {
	return &SoftCard{name: name, cert: cert, chain: chain, key: key}
}

// LoadSoftCard reads a PEM certificate, PEM RSA key and DER/PEM chain files.
func LoadSoftCard(certFile, keyFile string, chainFiles []string) (*SoftCard, error) {
	certDER, err := readCertificate(certFile)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}

	keyBytes, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}
	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, fmt.Errorf("load key: no PEM block in %s", keyFile)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}

	var chain [][]byte
	for _, f := range chainFiles {
		der, err := readCertificate(f)
		if err != nil {
			return nil, fmt.Errorf("load chain certificate %s: %w", f, err)
		}
		chain = append(chain, der)
	}

	return NewSoftCard(cert.Subject.CommonName, certDER, chain, key), nil
}

func readCertificate(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if block, _ := pem.Decode(raw); block != nil {
		return block.Bytes, nil
	}
	// Assume DER.
	return raw, nil
}

func (c *SoftCard) Name() string        { return c.name }
func (c *SoftCard) Certificate() []byte { return c.cert }
func (c *SoftCard) Chain() [][]byte     { return c.chain }

// Sign produces a SHA1 + PKCS#1 v1.5 signature, the mechanism the card
// middleware uses (CKM_SHA1_RSA_PKCS).
func (c *SoftCard) Sign(msg []byte) ([]byte, error) {
	digest := sha1.Sum(msg)
	return rsa.SignPKCS1v15(rand.Reader, c.key, crypto.SHA1, digest[:])
}

// VerifyCardSignature checks a card-issued signature against the RSA key
// inside the given DER certificate.
func VerifyCardSignature(msg, sig, certDER []byte) error {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate does not carry an RSA key")
	}
	digest := sha1.Sum(msg)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], sig); err != nil {
		return fmt.Errorf("card signature mismatch: %w", err)
	}
	return nil
}
