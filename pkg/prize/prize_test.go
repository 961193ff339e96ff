package prize

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func tiers(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.RequireFromString(v))
	}
	return out
}

func TestRollWithBoundaries(t *testing.T) {
	ts := tiers("0.03", "0.01", "0.02") // unsorted on purpose
	// total weight = 1 + 1/2 + 1/3 = 11/6
	tests := []struct {
		name string
		r    float64
		want string
	}{
		{name: "start of range", r: 0, want: "0.01"},
		{name: "inside first tier", r: 0.5, want: "0.01"},
		{name: "second tier", r: 0.7, want: "0.02"},
		{name: "last tier", r: 0.99, want: "0.03"},
		{name: "out of range falls back to smallest", r: 1.5, want: "0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RollWith(fixedSource(tt.r), ts)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if ts[0].String() != "0.03" {
		t.Errorf("input tiers must not be reordered")
	}
}

func TestRollEmpty(t *testing.T) {
	if got := Roll(nil); !got.IsZero() {
		t.Errorf("expected zero for empty tiers, got %s", got)
	}
}

func TestRollDistribution(t *testing.T) {
	ts := tiers("0.01", "0.02", "0.03")
	src := rand.New(rand.NewPCG(42, 1024))
	const draws = 100000

	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		counts[RollWith(src, ts).String()]++
	}

	want := Weights(len(ts))
	for i, tier := range ts {
		got := float64(counts[tier.String()]) / draws
		if math.Abs(got-want[i]) > 0.01 {
			t.Errorf("tier %s: expected frequency ~%.4f, got %.4f", tier, want[i], got)
		}
	}
	if counts["0.01"] <= counts["0.03"] {
		t.Errorf("smallest tier should be drawn more often than the largest: %v", counts)
	}
}
