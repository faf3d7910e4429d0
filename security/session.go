package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const channelInfo = "cardtable/v1/peer-channel"

// PeerParams are the public channel parameters a participant publishes for
// one connection: a P-384 public key (DER) and a fresh 16-byte IV. They are
// never reused across sessions.
type PeerParams struct {
	PubKey []byte `json:"pub_key"`
	IV     []byte `json:"iv"`
}

// Session holds one connection's key material. The same P-384 key signs
// (ECDSA) and agrees on channel secrets (ECDH).
type Session struct {
	priv *ecdsa.PrivateKey
	iv   []byte
}

func NewSession() (*Session, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return &Session{priv: priv, iv: RandomBytes(16)}, nil
}

// Params returns the shareable half of the session.
func (s *Session) Params() (PeerParams, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.priv.PublicKey)
	if err != nil {
		return PeerParams{}, fmt.Errorf("marshal session key: %w", err)
	}
	return PeerParams{PubKey: der, IV: append([]byte(nil), s.iv...)}, nil
}

// Sign produces an ECDSA signature over SHA-256 of msg.
func (s *Session) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	return ecdsa.SignASN1(rand.Reader, s.priv, digest[:])
}

// VerifySessionSignature checks an ECDSA session signature against a DER
// public key.
func VerifySessionSignature(msg, sig, pubDER []byte) error {
	pub, err := parseSessionKey(pubDER)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(msg)
	if !ecdsa.VerifyASN1(pub, digest[:], sig) {
		return fmt.Errorf("session signature mismatch")
	}
	return nil
}

// Encrypt derives a fresh shared key with the peer and encrypts plaintext
// for it, using the peer's IV. The derivation is re-run on every call.
func (s *Session) Encrypt(peer PeerParams, plaintext []byte) ([]byte, error) {
	key, err := s.sharedKey(peer.PubKey)
	if err != nil {
		return nil, err
	}
	return EncryptAESCBC(key, peer.IV, plaintext)
}

// Decrypt mirrors Encrypt on the receiving side: same ECDH secret by
// symmetry, own IV.
func (s *Session) Decrypt(peerPub, ciphertext []byte) ([]byte, error) {
	key, err := s.sharedKey(peerPub)
	if err != nil {
		return nil, err
	}
	return DecryptAESCBC(key, s.iv, ciphertext)
}

func (s *Session) sharedKey(peerPub []byte) ([]byte, error) {
	pub, err := parseSessionKey(peerPub)
	if err != nil {
		return nil, err
	}
	ownECDH, err := s.priv.ECDH()
	if err != nil {
		return nil, fmt.Errorf("session key has no ECDH form: %w", err)
	}
	peerECDH, err := pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("peer key has no ECDH form: %w", err)
	}
	shared, err := ownECDH.ECDH(peerECDH)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte(channelInfo)), key); err != nil {
		return nil, fmt.Errorf("derive channel key: %w", err)
	}
	return key, nil
}

func parseSessionKey(der []byte) (*ecdsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse session key: %w", err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("session key is not an EC key")
	}
	return pub, nil
}
