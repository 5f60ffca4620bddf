package engine

import (
	"fmt"
	"math/rand"
	"strings"
)

// Suit is one of the four card suits. The declaration order is also the
// enumeration order used to break ties (bot trump choice, hand sorting).
type Suit int

const (
	NoSuit Suit = iota
	Hearts
	Diamonds
	Clubs
	Spades
)

// Suits lists the playable suits in enumeration order.
var Suits = [...]Suit{Hearts, Diamonds, Clubs, Spades}

var suitNames = map[Suit]string{
	Hearts:   "hearts",
	Diamonds: "diamonds",
	Clubs:    "clubs",
	Spades:   "spades",
}

var suitLetters = map[Suit]string{
	Hearts:   "H",
	Diamonds: "D",
	Clubs:    "C",
	Spades:   "S",
}

func (s Suit) Valid() bool {
	return s >= Hearts && s <= Spades
}

func (s Suit) String() string {
	if name, ok := suitNames[s]; ok {
		return name
	}
	return "none"
}

// MarshalText encodes the suit as its lowercase name. NoSuit encodes as "".
func (s Suit) MarshalText() ([]byte, error) {
	if s == NoSuit {
		return []byte{}, nil
	}
	name, ok := suitNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid suit %d", int(s))
	}
	return []byte(name), nil
}

func (s *Suit) UnmarshalText(text []byte) error {
	parsed, err := ParseSuit(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSuit accepts a suit name ("hearts") or letter ("H"), case-insensitive.
// The empty string parses as NoSuit.
func ParseSuit(v string) (Suit, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return NoSuit, nil
	}
	for s, name := range suitNames {
		if v == name || v == strings.ToLower(suitLetters[s]) {
			return s, nil
		}
	}
	return NoSuit, fmt.Errorf("unknown suit %q", v)
}

// Rank orders 7 < 8 < 9 < 10 < J < Q < K < A with ordinals 1..8.
type Rank int

const (
	Seven Rank = iota + 1
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// Ranks lists the ranks from lowest to highest.
var Ranks = [...]Rank{Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

var rankNames = map[Rank]string{
	Seven: "7",
	Eight: "8",
	Nine:  "9",
	Ten:   "10",
	Jack:  "J",
	Queen: "Q",
	King:  "K",
	Ace:   "A",
}

func (r Rank) Valid() bool {
	return r >= Seven && r <= Ace
}

func (r Rank) String() string {
	if name, ok := rankNames[r]; ok {
		return name
	}
	return "?"
}

func (r Rank) MarshalText() ([]byte, error) {
	name, ok := rankNames[r]
	if !ok {
		return nil, fmt.Errorf("invalid rank %d", int(r))
	}
	return []byte(name), nil
}

func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func ParseRank(v string) (Rank, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	for r, name := range rankNames {
		if v == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown rank %q", v)
}

// Card is a value type; two cards are the same card iff suit and rank match.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) Valid() bool {
	return c.Suit.Valid() && c.Rank.Valid()
}

// String renders the short form, e.g. "10H" or "AS".
func (c Card) String() string {
	return c.Rank.String() + suitLetters[c.Suit]
}

// ParseCard parses the short form produced by String.
func ParseCard(v string) (Card, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if len(v) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", v)
	}
	rank, err := ParseRank(v[:len(v)-1])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", v, err)
	}
	suit, err := ParseSuit(v[len(v)-1:])
	if err != nil || suit == NoSuit {
		return Card{}, fmt.Errorf("invalid card %q: unknown suit", v)
	}
	return Card{Suit: suit, Rank: rank}, nil
}

// MustCard is ParseCard for literals in tests and fixtures.
func MustCard(v string) Card {
	c, err := ParseCard(v)
	if err != nil {
		panic(err)
	}
	return c
}

// DeckSize is the number of distinct cards in a Contract Crown deck.
const DeckSize = len(Suits) * len(Ranks)

// NewDeck returns the 32 cards in suit-major order.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// Shuffle permutes the deck in place using rng.
func Shuffle(deck []Card, rng *rand.Rand) {
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}
