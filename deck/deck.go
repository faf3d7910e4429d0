package deck

import (
	"sort"
	"strconv"
	"strings"
)

// Size is the number of cards in a full deck.
const Size = 52

// HandSize is what every seat must end the deal with.
const HandSize = 13

var suits = []string{"Sp", "Cl", "He", "Di"}
var specials = []string{"A", "K", "Q", "J"}

// New generates the 52 card tokens in a fixed order: for each suit the
// specials first, then 2..10.
func New() []string {
	cards := make([]string, 0, Size)
	for _, suit := range suits {
		for _, sp := range specials {
			cards = append(cards, suit+"-"+sp)
		}
		for n := 2; n <= 10; n++ {
			cards = append(cards, suit+"-"+strconv.Itoa(n))
		}
	}
	return cards
}

// Valid reports whether card is one of the 52 tokens.
func Valid(card string) bool {
	suit, rank, ok := strings.Cut(card, "-")
	if !ok {
		return false
	}
	found := false
	for _, s := range suits {
		if s == suit {
			found = true
		}
	}
	if !found {
		return false
	}
	return RankValue(rank) != 0
}

// Suit returns the suit part of a token.
func Suit(card string) string {
	suit, _, _ := strings.Cut(card, "-")
	return suit
}

// RankValue orders ranks for trick resolution: 2 lowest, ace highest.
// Unknown ranks map to 0.
func RankValue(rank string) int {
	switch rank {
	case "J":
		return 11
	case "Q":
		return 12
	case "K":
		return 13
	case "A":
		return 14
	}
	n, err := strconv.Atoi(rank)
	if err != nil || n < 2 || n > 10 {
		return 0
	}
	return n
}

// Rank returns the rank part of a token.
func Rank(card string) string {
	_, rank, _ := strings.Cut(card, "-")
	return rank
}

// SortHand sorts cards into the canonical lexicographic order used for
// commitments.
func SortHand(hand []string) []string {
	sorted := append([]string(nil), hand...)
	sort.Strings(sorted)
	return sorted
}

// Canonical is the byte form a hand is committed over.
func Canonical(hand []string) []byte {
	return []byte(strings.Join(SortHand(hand), ","))
}
