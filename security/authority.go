package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

// Authority is a local certification authority. It stands in for the real
// national PKI when playing with soft cards: it can mint intermediate
// authorities and leaf identities whose chains terminate in its root.
type Authority struct {
	name   string
	cert   []byte
	key    *rsa.PrivateKey
	parent *Authority
}

// NewAuthority creates a self-signed root authority.
func NewAuthority(name string) (*Authority, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	der, err := createCertificate(name, name, &key.PublicKey, key, true)
	if err != nil {
		return nil, err
	}
	return &Authority{name: name, cert: der, key: key}, nil
}

// Intermediate mints a subordinate authority.
func (a *Authority) Intermediate(name string) (*Authority, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	der, err := createCertificate(name, a.name, &key.PublicKey, a.key, true)
	if err != nil {
		return nil, err
	}
	return &Authority{name: name, cert: der, key: key, parent: a}, nil
}

// Issue mints a leaf identity whose chain walks up to the root.
func (a *Authority) Issue(name string) (*SoftCard, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	der, err := createCertificate(name, a.name, &key.PublicKey, a.key, false)
	if err != nil {
		return nil, err
	}
	var chain [][]byte
	for ca := a; ca != nil; ca = ca.parent {
		chain = append(chain, ca.cert)
	}
	return NewSoftCard(name, der, chain, key), nil
}

// Certificate returns the authority's DER certificate.
func (a *Authority) Certificate() []byte { return a.cert }

func createCertificate(subject, issuer string, pub *rsa.PublicKey, signer *rsa.PrivateKey, isCA bool) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: subject},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * 365 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		IsCA:                  isCA,
		BasicConstraintsValid: true,
	}
	if isCA {
		template.KeyUsage |= x509.KeyUsageCertSign
	}
	// The issuer template only needs the subject name: the chain walk is
	// by common name and stored bytes, not by x509 path building.
	issuerTemplate := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: issuer},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, issuerTemplate, pub, signer)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	return der, nil
}
