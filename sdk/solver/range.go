package solver

import (
	"encoding/json"
	"math/rand"
)

// NCanonicalCombos is the number of distinct two-card hole combinations from
// a 52-card deck: C(52,2) = 1326.
const NCanonicalCombos = 1326

// comboIndex/comboAt implement a fixed bijection between Hand and
// 0..NCanonicalCombos-1, built once at package init. Any consistent
// enumeration works; this one walks hi card 0..51, lo card 0..hi-1.
var (
	comboIndexTable [NumCards][NumCards]int // [hi][lo] -> combo index, -1 off-diagonal unused half
	comboAtTable    [NCanonicalCombos]Hand
)

func init() {
	idx := 0
	for hi := 0; hi < NumCards; hi++ {
		for lo := 0; lo < hi; lo++ {
			comboIndexTable[hi][lo] = idx
			comboAtTable[idx] = Hand{Hi: Card(hi), Lo: Card(lo)}
			idx++
		}
	}
}

func comboIndex(h Hand) int {
	return comboIndexTable[h.Hi][h.Lo]
}

// PokerRange is a dense, non-negative weight per canonical hole-card combo.
type PokerRange struct {
	weights [NCanonicalCombos]float64
}

// FullRange returns the range with weight 1 on every combo.
func FullRange() PokerRange {
	r := PokerRange{}
	for i := range r.weights {
		r.weights[i] = 1
	}
	return r
}

// Get returns the weight assigned to hand h.
func (r *PokerRange) Get(h Hand) float64 {
	return r.weights[comboIndex(h)]
}

// Set assigns the weight for hand h. w must be >= 0.
func (r *PokerRange) Set(h Hand, w float64) {
	invariant("PokerRange.Set", w >= 0, "negative range weight")
	r.weights[comboIndex(h)] = w
}

// Add increments the weight for hand h by delta.
func (r *PokerRange) Add(h Hand, delta float64) {
	r.weights[comboIndex(h)] += delta
	invariant("PokerRange.Add", r.weights[comboIndex(h)] >= 0, "negative range weight")
}

// Multiply scales the weight for hand h by factor.
func (r *PokerRange) Multiply(h Hand, factor float64) {
	invariant("PokerRange.Multiply", factor >= 0, "negative multiply factor")
	r.weights[comboIndex(h)] *= factor
}

// NCombos returns the sum of all weights.
func (r *PokerRange) NCombos() float64 {
	total := 0.0
	for _, w := range r.weights {
		total += w
	}
	return total
}

// Plus returns the element-wise sum of two ranges.
func (r PokerRange) Plus(other PokerRange) PokerRange {
	out := PokerRange{}
	for i := range out.weights {
		out.weights[i] = r.weights[i] + other.weights[i]
	}
	return out
}

// Times returns the element-wise product of two ranges.
func (r PokerRange) Times(other PokerRange) PokerRange {
	out := PokerRange{}
	for i := range out.weights {
		out.weights[i] = r.weights[i] * other.weights[i]
	}
	return out
}

// MarshalJSON encodes the dense weight array directly; PokerRange's field
// is unexported so the default encoder would otherwise emit "{}".
func (r PokerRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.weights)
}

func (r *PokerRange) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.weights)
}

// Sample draws one hand proportionally to weight, after zeroing any combo
// that contains a dead card. Returns ok=false (a data error per spec.md §7,
// not a panic) when every surviving weight is zero.
func (r *PokerRange) Sample(rng *rand.Rand, dead ...Card) (Hand, bool) {
	var deadMask [NumCards]bool
	for _, c := range dead {
		deadMask[c] = true
	}

	total := 0.0
	var live [NCanonicalCombos]float64
	for i, h := range comboAtTable {
		w := r.weights[i]
		if w <= 0 || deadMask[h.Hi] || deadMask[h.Lo] {
			continue
		}
		live[i] = w
		total += w
	}
	if total <= 0 {
		return Hand{}, false
	}

	target := rng.Float64() * total
	acc := 0.0
	for i, w := range live {
		if w <= 0 {
			continue
		}
		acc += w
		if target <= acc {
			return comboAtTable[i], true
		}
	}
	// Floating-point rounding can leave target just past the running sum;
	// fall back to the last live combo.
	for i := len(live) - 1; i >= 0; i-- {
		if live[i] > 0 {
			return comboAtTable[i], true
		}
	}
	return Hand{}, false
}
