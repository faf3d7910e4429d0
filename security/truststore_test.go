package security

import (
	"errors"
	"testing"
)

func mustAuthority(t *testing.T, name string) *Authority {
	t.Helper()
	a, err := NewAuthority(name)
	if err != nil {
		t.Fatalf("failed to create authority: %v", err)
	}
	return a
}

func mustIssue(t *testing.T, a *Authority, name string) *SoftCard {
	t.Helper()
	card, err := a.Issue(name)
	if err != nil {
		t.Fatalf("failed to issue identity: %v", err)
	}
	return card
}

func TestValidateChainAccept(t *testing.T) {
	root := mustAuthority(t, "Test Root CA")
	inter, err := root.Intermediate("Test Intermediate CA")
	if err != nil {
		t.Fatalf("failed to create intermediate: %v", err)
	}
	card := mustIssue(t, inter, "mario rossi")

	ts := NewTrustStore()
	if err := ts.AddTrusted(root.Certificate()); err != nil {
		t.Fatalf("failed to add anchor: %v", err)
	}
	if err := ts.ValidateChain(card.Certificate(), card.Chain()); err != nil {
		t.Fatalf("expected chain to validate: %v", err)
	}
	if !ts.IsKnown(card.Certificate()) {
		t.Fatal("expected leaf to be cached after validation")
	}
}

func TestValidateChainRevoked(t *testing.T) {
	root := mustAuthority(t, "Test Root CA")
	card := mustIssue(t, root, "mario rossi")

	ts := NewTrustStore()
	if err := ts.AddTrusted(root.Certificate()); err != nil {
		t.Fatalf("failed to add anchor: %v", err)
	}
	ts.Revoke("Test Root CA")
	err := ts.ValidateChain(card.Certificate(), card.Chain())
	if !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
	if ts.IsKnown(card.Certificate()) {
		t.Fatal("revoked leaf must not be cached")
	}
}

func TestValidateChainUntrusted(t *testing.T) {
	root := mustAuthority(t, "Test Root CA")
	card := mustIssue(t, root, "mario rossi")

	ts := NewTrustStore()
	other := mustAuthority(t, "Another Root CA")
	if err := ts.AddTrusted(other.Certificate()); err != nil {
		t.Fatalf("failed to add anchor: %v", err)
	}
	err := ts.ValidateChain(card.Certificate(), card.Chain())
	if !errors.Is(err, ErrUntrusted) {
		t.Fatalf("expected ErrUntrusted, got %v", err)
	}
}

func TestValidateChainDepthBound(t *testing.T) {
	root := mustAuthority(t, "Test Root CA")
	card := mustIssue(t, root, "mario rossi")
	stray := mustAuthority(t, "Stray CA")

	chain := make([][]byte, maxChainDepth+4)
	for i := range chain {
		chain[i] = stray.Certificate()
	}
	ts := NewTrustStore()
	if err := ts.ValidateChain(card.Certificate(), chain); err == nil {
		t.Fatal("expected over-long chain to be rejected")
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  mario rossi ":   "mario rossi",
		"CN/with/slashes":  "CN_with_slashes",
		`CN\back\slashes`:  "CN_back_slashes",
		"plain":            "plain",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
