package security

import "testing"

func TestCommitVerify(t *testing.T) {
	canonical := []byte("Cl-2,He-K,Sp-A")
	c := Commit(canonical)
	if !c.Verify(canonical) {
		t.Fatal("commitment does not open to its own canonical form")
	}
	if c.Verify([]byte("Cl-2,He-K,Sp-K")) {
		t.Fatal("commitment opened to a different canonical form")
	}
}

func TestCommitHiding(t *testing.T) {
	canonical := []byte("Cl-2,He-K,Sp-A")
	a := Commit(canonical)
	b := Commit(canonical)
	if a.Equal(b) {
		t.Fatal("two commitments over the same value must differ in opening")
	}
}

func TestCommitTamperedOpening(t *testing.T) {
	canonical := []byte("Cl-2,He-K,Sp-A")
	c := Commit(canonical)
	c.Opening[0] ^= 0x01
	if c.Verify(canonical) {
		t.Fatal("commitment verified with a tampered opening")
	}
}
