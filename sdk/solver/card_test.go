package solver

import (
	"math/rand"
	"testing"
)

func TestParseCardRoundTrip(t *testing.T) {
	cases := []string{"As", "Td", "2c", "Kh", "9s"}
	for _, s := range cases {
		c, err := ParseCard(s)
		if err != nil {
			t.Fatalf("ParseCard(%q): %v", s, err)
		}
		if got := c.String(); got != s {
			t.Fatalf("ParseCard(%q).String() = %q, want %q", s, got, s)
		}
	}
}

func TestParseCardLowercaseRank(t *testing.T) {
	c, err := ParseCard("aS")
	if err != nil {
		t.Fatalf("ParseCard: %v", err)
	}
	if c.Rank() != 12 || c.Suit() != 3 {
		t.Fatalf("expected ace of spades, got rank=%d suit=%d", c.Rank(), c.Suit())
	}
}

func TestParseCardInvalid(t *testing.T) {
	for _, s := range []string{"", "A", "Ax", "1s", "Xs"} {
		if _, err := ParseCard(s); err == nil {
			t.Fatalf("ParseCard(%q): expected error", s)
		}
	}
}

func TestNewHandCanonicalOrder(t *testing.T) {
	a, _ := ParseCard("As")
	k, _ := ParseCard("Kd")
	h1 := NewHand(a, k)
	h2 := NewHand(k, a)
	if h1 != h2 {
		t.Fatalf("NewHand not order-independent: %v vs %v", h1, h2)
	}
	if h1.Hi != a || h1.Lo != k {
		t.Fatalf("expected Hi=As Lo=Kd, got Hi=%v Lo=%v", h1.Hi, h1.Lo)
	}
}

func TestDeckShuffleDealsEachCardOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	d := NewDeck(rng)
	seen := make(map[Card]bool)
	for i := 0; i < NumCards; i++ {
		c := d.Draw()
		if seen[c] {
			t.Fatalf("card %v drawn twice", c)
		}
		seen[c] = true
	}
	if len(seen) != NumCards {
		t.Fatalf("expected %d distinct cards, got %d", NumCards, len(seen))
	}
}

func TestDeckDeadCardsExcluded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	dead, _ := ParseCard("As")
	d := NewDeck(rng, dead)
	for i := 0; i < NumCards-1; i++ {
		if c := d.Draw(); c == dead {
			t.Fatalf("drew dead card %v", c)
		}
	}
}

func TestDeckMarkDeadMidDeal(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	d := NewDeck(rng)
	first := d.Draw()
	d.MarkDead(first)
	d.Reset()
	for i := 0; i < NumCards-1; i++ {
		if c := d.Draw(); c == first {
			t.Fatalf("drew card %v marked dead after reset", c)
		}
	}
}

func TestDeckDrawExhaustedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic drawing from exhausted deck")
		}
	}()
	rng := rand.New(rand.NewSource(3))
	d := NewDeck(rng)
	d.DrawN(NumCards)
	d.Draw()
}
