// Package prize draws faucet payouts from a list of tiers.
//
// Tier i (0-based, ascending by amount) has weight 1/(i+1), so the smallest
// payout is the most likely and the largest the rarest.
package prize

import (
	"math/rand/v2"
	"sort"

	"github.com/shopspring/decimal"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Roll draws a tier using the process-wide random source.
func Roll(tiers []decimal.Decimal) decimal.Decimal {
	return RollWith(globalSource{}, tiers)
}

// RollWith draws a tier using src. An empty tier list yields zero.
func RollWith(src Source, tiers []decimal.Decimal) decimal.Decimal {
	if len(tiers) == 0 {
		return decimal.Zero
	}

	sorted := make([]decimal.Decimal, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	total := 0.0
	for i := range sorted {
		total += weight(i)
	}

	r := src.Float64() * total
	for i, tier := range sorted {
		r -= weight(i)
		if r < 0 {
			return tier
		}
	}
	return sorted[0]
}

// Weights returns the normalized probability of each rank.
func Weights(n int) []float64 {
	out := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		out[i] = weight(i)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

func weight(i int) float64 {
	return 1 / float64(i+1)
}
