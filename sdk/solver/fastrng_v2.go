package solver

import (
	"math/rand"
	randv2 "math/rand/v2"
)

// NewFastRandV2 builds a math/rand.Rand backed by a rand/v2 PCG source, used
// by the trainer's coordinator for the checkpoint-replayable call-count
// scheme in serialize.go (Int63 calls are counted and replayed).
func NewFastRandV2(seed int64) *rand.Rand {
	src := randv2.NewPCG(uint64(seed), uint64(seed))
	return rand.New(&v2Wrapper{src: src})
}

// v2Wrapper adapts rand/v2.Source to the rand.Source interface.
type v2Wrapper struct {
	src *randv2.PCG
}

func (w *v2Wrapper) Int63() int64 {
	return int64(w.src.Uint64() >> 1)
}

func (w *v2Wrapper) Seed(seed int64) {
	*w.src = *randv2.NewPCG(uint64(seed), uint64(seed))
}
