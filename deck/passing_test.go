package deck

import "testing"

func TestPassingTake(t *testing.T) {
	p := NewPassing([]string{"a", "b", "c", "d"})
	if p.Count() != 4 {
		t.Fatalf("expected count 4, got %d", p.Count())
	}
	total := len(p)

	card, err := p.Take(2, "filler")
	if err != nil {
		t.Fatalf("failed to take: %v", err)
	}
	if card != "b" {
		t.Fatalf("took %q, want %q", card, "b")
	}
	if p.Count() != 3 {
		t.Fatalf("expected count 3 after take, got %d", p.Count())
	}
	if len(p) != total {
		t.Fatalf("outer length changed: %d, want %d", len(p), total)
	}
	if p[len(p)-1] != "filler" {
		t.Fatal("placeholder was not appended")
	}

	if _, err := p.Take(0, "x"); err == nil {
		t.Fatal("expected offset 0 to be rejected")
	}
	if _, err := p.Take(4, "x"); err == nil {
		t.Fatal("expected out-of-live offset to be rejected")
	}
}

func TestPassingSwap(t *testing.T) {
	p := NewPassing([]string{"a", "b", "c"})
	old, err := p.Swap(3, "mine")
	if err != nil {
		t.Fatalf("failed to swap: %v", err)
	}
	if old != "c" {
		t.Fatalf("swapped out %q, want %q", old, "c")
	}
	if p.Count() != 3 {
		t.Fatalf("swap changed the count to %d", p.Count())
	}
	if _, err := p.Swap(4, "x"); err == nil {
		t.Fatal("expected out-of-live offset to be rejected")
	}
}

func TestPassingShuffleLive(t *testing.T) {
	p := NewPassing([]string{"a", "b", "c", "d"})
	if _, err := p.Take(1, "filler"); err != nil {
		t.Fatalf("failed to take: %v", err)
	}
	before := map[string]int{}
	for _, card := range p.Live() {
		before[card]++
	}

	if err := p.ShuffleLive([]int{2, 0, 1}); err != nil {
		t.Fatalf("failed to shuffle: %v", err)
	}
	after := map[string]int{}
	for _, card := range p.Live() {
		after[card]++
	}
	if len(before) != len(after) {
		t.Fatal("shuffle changed the live multiset")
	}
	for card, n := range before {
		if after[card] != n {
			t.Fatalf("shuffle changed the live multiset at %q", card)
		}
	}
	if p[len(p)-1] != "filler" {
		t.Fatal("shuffle touched the placeholder region")
	}

	if err := p.ShuffleLive([]int{0, 1}); err == nil {
		t.Fatal("expected wrong-size permutation to be rejected")
	}
}

func TestParsePassing(t *testing.T) {
	if _, err := ParsePassing(nil); err == nil {
		t.Fatal("expected empty deck to be rejected")
	}
	if _, err := ParsePassing([]string{"two", "a"}); err == nil {
		t.Fatal("expected non-numeric count to be rejected")
	}
	if _, err := ParsePassing([]string{"3", "a"}); err == nil {
		t.Fatal("expected overlong count to be rejected")
	}
	p, err := ParsePassing([]string{"1", "a", "filler"})
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if p.Count() != 1 || len(p.Live()) != 1 {
		t.Fatalf("parsed wrong live region: count %d", p.Count())
	}
}
