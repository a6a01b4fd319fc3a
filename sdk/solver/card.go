package solver

import (
	"fmt"
	"math/rand"

	"github.com/kbond2024/bananakid/poker"
)

// Card encodes a single playing card as an integer 0..51: rank = card/4
// (2..A), suit = card%4, per spec.md §3. This is the solver's own compact
// encoding; NumCards lets it size fixed arrays (the dead-card set, the deck)
// without a dynamic allocation.
type Card int

// NumCards is the size of a standard deck.
const NumCards = 52

// NewCard builds a Card from rank (0=Two..12=Ace) and suit (0..3).
func NewCard(rank, suit int) Card {
	return Card(rank*4 + suit)
}

// Rank returns the card's rank, 0 (Two) through 12 (Ace).
func (c Card) Rank() int { return int(c) / 4 }

// Suit returns the card's suit, 0..3.
func (c Card) Suit() int { return int(c) % 4 }

var cardRankChars = [...]byte{'2', '3', '4', '5', '6', '7', '8', '9', 'T', 'J', 'Q', 'K', 'A'}
var cardSuitChars = [...]byte{'c', 'd', 'h', 's'}

func (c Card) String() string {
	if c < 0 || int(c) >= NumCards {
		return "??"
	}
	return string(cardRankChars[c.Rank()]) + string(cardSuitChars[c.Suit()])
}

// toPoker converts to the external evaluator's bitmask Card representation.
// Suit indices need not agree between the two encodings (the evaluator
// treats suits symmetrically); only the rank/suit pairing must be a
// bijection, which it is here.
func (c Card) toPoker() poker.Card {
	return poker.NewCard(uint8(c.Rank()), uint8(c.Suit()))
}

// Hand is an ordered pair of hole cards; canonical form sorts descending so
// two hands dealt in either order compare and hash identically.
type Hand struct {
	Hi, Lo Card
}

// NewHand builds the canonical (descending) form of a two-card hand.
func NewHand(a, b Card) Hand {
	if a < b {
		a, b = b, a
	}
	return Hand{Hi: a, Lo: b}
}

func (h Hand) String() string {
	return h.Hi.String() + h.Lo.String()
}

// Board is the ordered sequence of community cards dealt so far (0..5).
type Board []Card

func (b Board) toPokerHand() poker.Hand {
	h := poker.NewHand()
	for _, c := range b {
		h.AddCard(c.toPoker())
	}
	return h
}

// Deck is an ordered sequence of all 52 cards plus a set of dead cards
// excluded from dealing. Draw returns the next non-dead card; the cursor
// resets to the start on Reset/Shuffle, per spec.md §3.
type Deck struct {
	cards  [NumCards]Card
	dead   [NumCards]bool
	cursor int
	rng    *rand.Rand
}

// NewDeck builds and shuffles a fresh 52-card deck, excluding dead from
// dealing for its whole lifetime.
func NewDeck(rng *rand.Rand, dead ...Card) *Deck {
	d := &Deck{rng: rng}
	for i := 0; i < NumCards; i++ {
		d.cards[i] = Card(i)
	}
	for _, c := range dead {
		d.dead[c] = true
	}
	d.Shuffle()
	return d
}

// MarkDead additionally excludes cards from future Draw calls, without
// touching deck order or the cursor. Used mid-deal when a card is assigned
// by a mechanism other than Draw (e.g. PokerRange.Sample) so subsequent
// Draw calls from the same deck never hand out a duplicate.
func (d *Deck) MarkDead(cards ...Card) {
	for _, c := range cards {
		d.dead[c] = true
	}
}

// Shuffle performs a Fisher-Yates shuffle and resets the draw cursor.
func (d *Deck) Shuffle() {
	for i := NumCards - 1; i > 0; i-- {
		j := d.rng.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
	d.cursor = 0
}

// Reset rewinds the draw cursor to the start without reordering the deck.
func (d *Deck) Reset() {
	d.cursor = 0
}

// Draw returns the next non-dead card, advancing the cursor past it.
// Panics (invariant violation) if the deck is exhausted, since every legal
// caller knows in advance how many cards it needs and the deck never runs
// dry under normal table sizes.
func (d *Deck) Draw() Card {
	for d.cursor < NumCards {
		c := d.cards[d.cursor]
		d.cursor++
		if !d.dead[c] {
			return c
		}
	}
	invariant("Deck.Draw", false, "deck exhausted")
	return 0
}

// DrawN draws n non-dead cards.
func (d *Deck) DrawN(n int) []Card {
	out := make([]Card, n)
	for i := range out {
		out[i] = d.Draw()
	}
	return out
}

// ParseCard parses standard two-character notation ("As", "Td").
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("solver: invalid card %q", s)
	}
	upperRank := s[0]
	if upperRank >= 'a' && upperRank <= 'z' {
		upperRank -= 32
	}
	lowerSuit := s[1]
	if lowerSuit >= 'A' && lowerSuit <= 'Z' {
		lowerSuit += 32
	}
	rank := -1
	for i, r := range cardRankChars {
		if r == upperRank {
			rank = i
			break
		}
	}
	suit := -1
	for i, r := range cardSuitChars {
		if r == lowerSuit {
			suit = i
			break
		}
	}
	if rank == -1 || suit == -1 {
		return 0, fmt.Errorf("solver: invalid card %q", s)
	}
	return NewCard(rank, suit), nil
}
