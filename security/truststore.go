package security

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Chain length is attacker-influenced input, so the walk is bounded.
const maxChainDepth = 16

var (
	ErrUntrusted = fmt.Errorf("certificate chain does not reach a trusted anchor")
	ErrRevoked   = fmt.Errorf("certificate anchor is revoked")
)

// TrustStore validates certificate chains against a local set of trusted
// certificates and a revocation list. Entries are keyed by the
// filename-normalized subject common name.
type TrustStore struct {
	trusted map[string][]byte
	revoked map[string]bool
	known   map[[32]byte]bool
}

func NewTrustStore() *TrustStore {
	return &TrustStore{
		trusted: make(map[string][]byte),
		revoked: make(map[string]bool),
		known:   make(map[[32]byte]bool),
	}
}

// LoadTrustStore reads every certificate in dir as a trusted entry, plus an
// optional revocation list file holding one subject name per line.
func LoadTrustStore(dir, revocationList string) (*TrustStore, error) {
	ts := NewTrustStore()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read trusted certificates: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		der, err := readCertificate(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read trusted certificate %s: %w", e.Name(), err)
		}
		if err := ts.AddTrusted(der); err != nil {
			return nil, fmt.Errorf("trusted certificate %s: %w", e.Name(), err)
		}
	}

	if revocationList != "" {
		f, err := os.Open(revocationList)
		if err != nil {
			return nil, fmt.Errorf("read revocation list: %w", err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			name := strings.TrimSpace(scanner.Text())
			if name != "" {
				ts.Revoke(name)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read revocation list: %w", err)
		}
	}

	return ts, nil
}

// AddTrusted registers a DER certificate as a trust anchor.
func (ts *TrustStore) AddTrusted(der []byte) error {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}
	ts.trusted[NormalizeName(cert.Subject.CommonName)] = der
	return nil
}

// Revoke marks an anchor name as revoked.
func (ts *TrustStore) Revoke(name string) {
	ts.revoked[NormalizeName(name)] = true
}

// ValidateChain walks from the leaf towards the root. A certificate whose
// normalized subject is a stored anchor with byte-identical DER is accepted
// immediately, unless the anchor is revoked. On success the leaf is cached
// so later messages only need signature checks.
func (ts *TrustStore) ValidateChain(leaf []byte, chain [][]byte) error {
	current := leaf
	rest := chain
	for depth := 0; depth <= maxChainDepth; depth++ {
		cert, err := x509.ParseCertificate(current)
		if err != nil {
			return fmt.Errorf("parse certificate at depth %d: %w", depth, err)
		}
		name := NormalizeName(cert.Subject.CommonName)
		if stored, ok := ts.trusted[name]; ok && bytes.Equal(stored, current) {
			if ts.revoked[name] {
				return fmt.Errorf("%w: %s", ErrRevoked, cert.Subject.CommonName)
			}
			ts.known[sha256.Sum256(leaf)] = true
			return nil
		}
		if len(rest) == 0 {
			return ErrUntrusted
		}
		current, rest = rest[0], rest[1:]
	}
	return fmt.Errorf("certificate chain longer than %d", maxChainDepth)
}

// IsKnown reports whether a leaf already passed full chain validation.
func (ts *TrustStore) IsKnown(leaf []byte) bool {
	return ts.known[sha256.Sum256(leaf)]
}

// NormalizeName maps a certificate subject to the form used as a store key,
// the same normalization applied when anchors are stored as files.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name
}
