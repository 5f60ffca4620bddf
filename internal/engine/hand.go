package engine

import "sort"

// Hand is the set of cards held by one seat.
type Hand []Card

func (h Hand) Contains(c Card) bool {
	for _, card := range h {
		if card == c {
			return true
		}
	}
	return false
}

func (h Hand) HasSuit(s Suit) bool {
	for _, card := range h {
		if card.Suit == s {
			return true
		}
	}
	return false
}

// Remove returns a new hand without c. The receiver is left untouched so
// snapshots that share the old slice never observe the removal.
func (h Hand) Remove(c Card) (Hand, bool) {
	for i, card := range h {
		if card != c {
			continue
		}
		out := make(Hand, 0, len(h)-1)
		out = append(out, h[:i]...)
		return append(out, h[i+1:]...), true
	}
	return h, false
}

// Sorted returns a copy ordered by suit enumeration, then rank.
func (h Hand) Sorted() Hand {
	out := h.Clone()
	sort.Slice(out, func(i, j int) bool { return cardLess(out[i], out[j]) })
	return out
}

func (h Hand) Clone() Hand {
	if h == nil {
		return nil
	}
	out := make(Hand, len(h))
	copy(out, h)
	return out
}

// Lowest returns the lowest-ranked card among those matching keep, breaking
// rank ties by suit enumeration order.
func (h Hand) Lowest(keep func(Card) bool) (Card, bool) {
	var (
		best  Card
		found bool
	)
	for _, c := range h {
		if keep != nil && !keep(c) {
			continue
		}
		if !found || c.Rank < best.Rank || (c.Rank == best.Rank && c.Suit < best.Suit) {
			best, found = c, true
		}
	}
	return best, found
}

// CountSuits tallies cards per suit.
func (h Hand) CountSuits() map[Suit]int {
	counts := make(map[Suit]int, len(Suits))
	for _, c := range h {
		counts[c.Suit]++
	}
	return counts
}

func cardLess(a, b Card) bool {
	if a.Suit != b.Suit {
		return a.Suit < b.Suit
	}
	return a.Rank < b.Rank
}
