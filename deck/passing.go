package deck

import (
	"fmt"
	"strconv"
)

// Passing is the deck that circulates between seats during the deal. Slot 0
// encodes the remaining live-card count so peers agree on size without
// trusting the relay; slots 1..count hold live ciphertexts and anything
// past count is placeholder material that keeps the outer length constant.
type Passing []string

// NewPassing builds a passing deck over the given cards.
func NewPassing(cards []string) Passing {
	p := make(Passing, 0, len(cards)+1)
	p = append(p, strconv.Itoa(len(cards)))
	return append(p, cards...)
}

// ParsePassing validates the leading count slot of a received deck.
func ParsePassing(slots []string) (Passing, error) {
	if len(slots) == 0 {
		return nil, fmt.Errorf("empty passing deck")
	}
	count, err := strconv.Atoi(slots[0])
	if err != nil {
		return nil, fmt.Errorf("passing deck has no length slot: %w", err)
	}
	if count < 0 || count > len(slots)-1 {
		return nil, fmt.Errorf("passing deck count %d out of range", count)
	}
	return Passing(slots), nil
}

// Count returns the number of live cards.
func (p Passing) Count() int {
	n, _ := strconv.Atoi(p[0])
	return n
}

func (p Passing) setCount(n int) {
	p[0] = strconv.Itoa(n)
}

// Live returns the live ciphertexts (copy).
func (p Passing) Live() []string {
	return append([]string(nil), p[1:p.Count()+1]...)
}

// Take removes the live card at 1-based offset, appends a placeholder to
// keep the outer length constant and decrements the count.
func (p *Passing) Take(offset int, placeholder string) (string, error) {
	count := p.Count()
	if offset < 1 || offset > count {
		return "", fmt.Errorf("take offset %d out of live range 1..%d", offset, count)
	}
	d := *p
	card := d[offset]
	d = append(d[:offset], d[offset+1:]...)
	d = append(d, placeholder)
	d.setCount(count - 1)
	*p = d
	return card, nil
}

// Swap exchanges the live card at 1-based offset with card.
func (p Passing) Swap(offset int, card string) (string, error) {
	count := p.Count()
	if offset < 1 || offset > count {
		return "", fmt.Errorf("swap offset %d out of live range 1..%d", offset, count)
	}
	old := p[offset]
	p[offset] = card
	return old, nil
}

// ShuffleLive permutes the live region with perm, a permutation of
// 0..count-1.
func (p Passing) ShuffleLive(perm []int) error {
	count := p.Count()
	if len(perm) != count {
		return fmt.Errorf("permutation size %d does not match live count %d", len(perm), count)
	}
	live := p.Live()
	for i, j := range perm {
		p[1+i] = live[j]
	}
	return nil
}
