package game

import (
	"fmt"

	"cardtable/deck"
)

const (
	players       = 4
	tricksPerGame = 13
	queenOfSpades = "Sp-Q"
)

type playedCard struct {
	seat int
	card string
}

// Hearts is the referee for a four-player Hearts table. Penalty points:
// one per heart, thirteen for the queen of spades; fewest points wins.
type Hearts struct {
	played map[string]bool
	trick  []playedCard
	leader int
	points [players]int
	tricks int
}

func NewHearts() *Hearts {
	return &Hearts{
		played: make(map[string]bool, deck.Size),
	}
}

// Turn returns the seat expected to play next.
func (h *Hearts) Turn() int {
	return (h.leader + len(h.trick)) % players
}

func (h *Hearts) ValidPlay(seat int, card string) error {
	if h.Over() {
		return fmt.Errorf("game is over")
	}
	if seat != h.Turn() {
		return fmt.Errorf("not your turn")
	}
	if !deck.Valid(card) {
		return fmt.Errorf("unknown card %q", card)
	}
	if h.played[card] {
		return fmt.Errorf("card %s was already played", card)
	}
	return nil
}

func (h *Hearts) NewPlay(seat int, card string) {
	h.played[card] = true
	h.trick = append(h.trick, playedCard{seat: seat, card: card})
}

func (h *Hearts) FullTrick() bool {
	return len(h.trick) == players
}

func (h *Hearts) TrickOutcome() (int, int) {
	ledSuit := deck.Suit(h.trick[0].card)
	winner := h.trick[0]
	for _, pc := range h.trick[1:] {
		if deck.Suit(pc.card) == ledSuit &&
			deck.RankValue(deck.Rank(pc.card)) > deck.RankValue(deck.Rank(winner.card)) {
			winner = pc
		}
	}
	points := 0
	for _, pc := range h.trick {
		if deck.Suit(pc.card) == "He" {
			points++
		}
		if pc.card == queenOfSpades {
			points += 13
		}
	}
	h.points[winner.seat] += points
	h.leader = winner.seat
	h.trick = h.trick[:0]
	h.tricks++
	return winner.seat, points
}

func (h *Hearts) Over() bool {
	return h.tricks == tricksPerGame
}

// Outcome returns the seats with the fewest penalty points.
func (h *Hearts) Outcome() []int {
	min := h.points[0]
	for _, p := range h.points[1:] {
		if p < min {
			min = p
		}
	}
	var winners []int
	for seat, p := range h.points {
		if p == min {
			winners = append(winners, seat)
		}
	}
	return winners
}

// Points exposes the running score.
func (h *Hearts) Points() [players]int {
	return h.points
}
