// Package daily picks a reproducible subset of a content pool for a calendar day.
//
// The generator constants below are part of the product contract: changing any of
// them changes the selection of every future day.
package daily

import (
	"math"

	"cloud.google.com/go/civil"

	"reward-engine/calendar"
)

// Linear-congruential generator constants (Numerical Recipes).
const (
	LCGMultiplier = 1664525
	LCGIncrement  = 1013904223
	LCGModulus    = 1 << 32
)

// Generator is the seeded LCG driving the shuffle.
type Generator struct {
	seed uint64
}

func NewGenerator(seed int64) *Generator {
	s := seed % LCGModulus
	if s < 0 {
		s += LCGModulus
	}
	return &Generator{seed: uint64(s)}
}

// Next advances the state and returns a float in [0,1).
func (g *Generator) Next() float64 {
	g.seed = (g.seed*LCGMultiplier + LCGIncrement) % LCGModulus
	return float64(g.seed) / float64(LCGModulus)
}

// Shuffle returns a Fisher–Yates shuffled copy of pool driven by g. pool is not modified.
func Shuffle[T any](g *Generator, pool []T) []T {
	out := make([]T, len(pool))
	copy(out, pool)
	for i := len(out) - 1; i > 0; i-- {
		j := int(math.Floor(g.Next() * float64(i+1)))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Select returns the first count items of pool shuffled with the seed of date.
// Same inputs always give the same output.
func Select[T any](date civil.Date, pool []T, count int) []T {
	if count <= 0 || len(pool) == 0 {
		return []T{}
	}
	shuffled := Shuffle(NewGenerator(calendar.Seed(date)), pool)
	if count > len(shuffled) {
		count = len(shuffled)
	}
	return shuffled[:count]
}
