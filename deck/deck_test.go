package deck

import "testing"

func TestNewDeck(t *testing.T) {
	cards := New()
	if len(cards) != Size {
		t.Fatalf("expected %d cards, got %d", Size, len(cards))
	}
	seen := make(map[string]bool, Size)
	for _, card := range cards {
		if !Valid(card) {
			t.Fatalf("generated invalid card %q", card)
		}
		if seen[card] {
			t.Fatalf("duplicate card %q", card)
		}
		seen[card] = true
	}
}

func TestValid(t *testing.T) {
	for _, card := range []string{"Sp-A", "He-10", "Di-2", "Cl-Q"} {
		if !Valid(card) {
			t.Fatalf("expected %q to be valid", card)
		}
	}
	for _, card := range []string{"", "Sp", "Sp-", "Sp-1", "Sp-11", "Xx-A", "sp-A", "Sp-B"} {
		if Valid(card) {
			t.Fatalf("expected %q to be invalid", card)
		}
	}
}

func TestRankValueOrdering(t *testing.T) {
	order := []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}
	for i := 1; i < len(order); i++ {
		if RankValue(order[i-1]) >= RankValue(order[i]) {
			t.Fatalf("rank %s should order below %s", order[i-1], order[i])
		}
	}
}

func TestCanonicalIsOrderIndependent(t *testing.T) {
	a := Canonical([]string{"Sp-A", "He-2", "Cl-K"})
	b := Canonical([]string{"Cl-K", "Sp-A", "He-2"})
	if string(a) != string(b) {
		t.Fatalf("canonical forms differ: %q vs %q", a, b)
	}
}
