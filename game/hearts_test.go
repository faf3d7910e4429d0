package game

import (
	"testing"

	"cardtable/deck"
)

func TestTrickWinnerAndPoints(t *testing.T) {
	h := NewHearts()
	plays := []string{"Sp-4", "Sp-K", "He-2", "Sp-Q"}
	for seat, card := range plays {
		if err := h.ValidPlay(seat, card); err != nil {
			t.Fatalf("play %d rejected: %v", seat, err)
		}
		h.NewPlay(seat, card)
	}
	if !h.FullTrick() {
		t.Fatal("expected a full trick after four plays")
	}
	winner, points := h.TrickOutcome()
	if winner != 1 {
		t.Fatalf("expected seat 1 to take the trick, got %d", winner)
	}
	// One heart plus the queen of spades.
	if points != 14 {
		t.Fatalf("expected 14 penalty points, got %d", points)
	}
	if h.Turn() != 1 {
		t.Fatalf("expected the winner to lead, got seat %d", h.Turn())
	}
}

func TestOffSuitCannotWin(t *testing.T) {
	h := NewHearts()
	plays := []string{"Cl-2", "He-A", "Di-K", "Sp-A"}
	for seat, card := range plays {
		h.NewPlay(seat, card)
	}
	winner, points := h.TrickOutcome()
	if winner != 0 {
		t.Fatalf("expected the leader to win with the only club, got seat %d", winner)
	}
	if points != 1 {
		t.Fatalf("expected 1 penalty point, got %d", points)
	}
}

func TestValidPlayRejections(t *testing.T) {
	h := NewHearts()
	if err := h.ValidPlay(1, "Sp-2"); err == nil {
		t.Fatal("expected out-of-turn play to be rejected")
	}
	if err := h.ValidPlay(0, "Sp-15"); err == nil {
		t.Fatal("expected unknown card to be rejected")
	}
	h.NewPlay(0, "Sp-2")
	if err := h.ValidPlay(1, "Sp-2"); err == nil {
		t.Fatal("expected replayed card to be rejected")
	}
}

func TestFullGame(t *testing.T) {
	h := NewHearts()
	cards := deck.New()
	// Deal round-robin and play whatever the referee allows next.
	hands := make([][]string, players)
	for i, card := range cards {
		hands[i%players] = append(hands[i%players], card)
	}
	for !h.Over() {
		seat := h.Turn()
		card := hands[seat][0]
		hands[seat] = hands[seat][1:]
		if err := h.ValidPlay(seat, card); err != nil {
			t.Fatalf("seat %d could not play %s: %v", seat, card, err)
		}
		h.NewPlay(seat, card)
		if h.FullTrick() {
			h.TrickOutcome()
		}
	}
	points := h.Points()
	total := 0
	for _, p := range points {
		total += p
	}
	if total != 26 {
		t.Fatalf("expected 26 penalty points in a full game, got %d", total)
	}
	winners := h.Outcome()
	if len(winners) == 0 {
		t.Fatal("expected at least one winner")
	}
	for _, w := range winners {
		for seat := range points {
			if points[seat] < points[w] {
				t.Fatalf("seat %d has fewer points than declared winner %d", seat, w)
			}
		}
	}
}
