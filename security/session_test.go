package security

import (
	"bytes"
	"testing"
)

func mustSession(t *testing.T) (*Session, PeerParams) {
	t.Helper()
	s, err := NewSession()
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	params, err := s.Params()
	if err != nil {
		t.Fatalf("failed to export session params: %v", err)
	}
	return s, params
}

func TestSessionSignVerify(t *testing.T) {
	s, params := mustSession(t)
	msg := []byte(`{"intent":"create_table"}`)
	sig, err := s.Sign(msg)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if err := VerifySessionSignature(msg, sig, params.PubKey); err != nil {
		t.Fatalf("expected signature to verify: %v", err)
	}

	corrupted := append([]byte(nil), msg...)
	corrupted[0] ^= 0x01
	if err := VerifySessionSignature(corrupted, sig, params.PubKey); err == nil {
		t.Fatal("expected corrupted message to fail verification")
	}

	badSig := append([]byte(nil), sig...)
	badSig[len(badSig)-1] ^= 0x01
	if err := VerifySessionSignature(msg, badSig, params.PubKey); err == nil {
		t.Fatal("expected corrupted signature to fail verification")
	}
}

func TestChannelRoundTrip(t *testing.T) {
	a, aParams := mustSession(t)
	b, bParams := mustSession(t)
	msg := []byte(`{"deck":["Sp-A","He-10"]}`)

	ciphertext, err := a.Encrypt(bParams, msg)
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}
	if bytes.Contains(ciphertext, []byte("Sp-A")) {
		t.Fatal("ciphertext leaks plaintext")
	}
	plaintext, err := b.Decrypt(aParams.PubKey, ciphertext)
	if err != nil {
		t.Fatalf("failed to decrypt: %v", err)
	}
	if !bytes.Equal(plaintext, msg) {
		t.Fatalf("round trip mismatch: got %q", plaintext)
	}
}

func TestChannelWrongPeer(t *testing.T) {
	a, aParams := mustSession(t)
	_, bParams := mustSession(t)
	eve, _ := mustSession(t)
	msg := []byte("secret")

	ciphertext, err := a.Encrypt(bParams, msg)
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}
	plaintext, err := eve.Decrypt(aParams.PubKey, ciphertext)
	if err == nil && bytes.Equal(plaintext, msg) {
		t.Fatal("third party recovered the plaintext")
	}
}

func TestChannelTamperedCiphertext(t *testing.T) {
	a, aParams := mustSession(t)
	b, bParams := mustSession(t)
	msg := []byte("secret")

	ciphertext, err := a.Encrypt(bParams, msg)
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}
	ciphertext[0] ^= 0x01
	plaintext, err := b.Decrypt(aParams.PubKey, ciphertext)
	if err == nil && bytes.Equal(plaintext, msg) {
		t.Fatal("tampered ciphertext decrypted to the original plaintext")
	}
}
