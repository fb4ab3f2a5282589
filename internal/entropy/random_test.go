package entropy

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestSource_FirstValueFollowsRecurrence(t *testing.T) {
	src := NewSource(42)
	want := float64(uint32(42*1664525+1013904223)) / (1 << 32)
	if got := src.Next(); got != want {
		t.Fatalf("next=%v want %v", got, want)
	}
}

func TestSource_SameSeedSameSequence(t *testing.T) {
	a, b := NewSource(7), NewSource(7)
	for i := 0; i < 1000; i++ {
		x, y := a.Gaussian(), b.Gaussian()
		if x != y {
			t.Fatalf("draw %d diverged: %v vs %v", i, x, y)
		}
	}
	if a.Draws() != 2000 {
		t.Fatalf("draws=%d want 2000", a.Draws())
	}
}

func TestSource_DifferentSeedsDiverge(t *testing.T) {
	a, b := NewSource(1), NewSource(2)
	if a.Next() == b.Next() {
		t.Fatalf("expected different first values for different seeds")
	}
}

func TestSource_GaussianRoughlyStandard(t *testing.T) {
	src := NewSource(12345)
	const n = 20000
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		g := src.Gaussian()
		if math.IsNaN(g) || math.IsInf(g, 0) {
			t.Fatalf("gaussian produced %v", g)
		}
		sum += g
		sumSq += g * g
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if math.Abs(mean) > 0.05 {
		t.Fatalf("mean=%v want ~0", mean)
	}
	if math.Abs(variance-1) > 0.1 {
		t.Fatalf("variance=%v want ~1", variance)
	}
}

func TestSource_RangesHold(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		n := rapid.IntRange(1, 100).Draw(t, "n")
		src := NewSource(seed)
		for i := 0; i < 50; i++ {
			u := src.Next()
			if u < 0 || u >= 1 {
				t.Fatalf("next=%v outside [0,1)", u)
			}
			k := src.Intn(n)
			if k < 0 || k >= n {
				t.Fatalf("intn(%d)=%d", n, k)
			}
			v := src.IntBetween(6, 48)
			if v < 6 || v > 48 {
				t.Fatalf("intBetween=%d outside [6,48]", v)
			}
			r := src.InRange(0.2, 0.8)
			if r < 0.2 || r >= 0.8 {
				t.Fatalf("inRange=%v outside [0.2,0.8)", r)
			}
		}
	})
}

func TestIntn_NonPositiveDoesNotDraw(t *testing.T) {
	src := NewSource(3)
	if got := src.Intn(0); got != 0 {
		t.Fatalf("intn(0)=%d want 0", got)
	}
	if src.Draws() != 0 {
		t.Fatalf("draws=%d want 0", src.Draws())
	}
}
