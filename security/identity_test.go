package security

import "testing"

func TestCardSignVerify(t *testing.T) {
	root := mustAuthority(t, "Test Root CA")
	card := mustIssue(t, root, "mario rossi")

	msg := []byte(`{"intent":"register","name":"mario rossi"}`)
	sig, err := card.Sign(msg)
	if err != nil {
		t.Fatalf("failed to sign with card: %v", err)
	}
	if err := VerifyCardSignature(msg, sig, card.Certificate()); err != nil {
		t.Fatalf("expected card signature to verify: %v", err)
	}

	corrupted := append([]byte(nil), sig...)
	corrupted[0] ^= 0x01
	if err := VerifyCardSignature(msg, corrupted, card.Certificate()); err == nil {
		t.Fatal("expected corrupted signature to fail verification")
	}

	other := mustIssue(t, root, "luigi bianchi")
	if err := VerifyCardSignature(msg, sig, other.Certificate()); err == nil {
		t.Fatal("expected verification under another certificate to fail")
	}
}

func TestCardExposesChain(t *testing.T) {
	root := mustAuthority(t, "Test Root CA")
	inter, err := root.Intermediate("Test Intermediate CA")
	if err != nil {
		t.Fatalf("failed to create intermediate: %v", err)
	}
	card := mustIssue(t, inter, "mario rossi")
	if card.Name() != "mario rossi" {
		t.Fatalf("unexpected name %q", card.Name())
	}
	if len(card.Chain()) != 2 {
		t.Fatalf("expected chain of 2, got %d", len(card.Chain()))
	}
}
