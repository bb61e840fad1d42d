package geom

import (
	"math"
	"testing"
)

func TestApplyFactor(t *testing.T) {
	cases := []struct {
		name      string
		value     float64
		factor    float64
		influence float64
		want      float64
	}{
		{name: "zero influence keeps value", value: 10, factor: 0, influence: 0, want: 10},
		{name: "full influence applies factor", value: 10, factor: 0.5, influence: 1, want: 5},
		{name: "partial influence", value: 10, factor: 0, influence: 0.9, want: 1},
		{name: "factor clamped above one", value: 10, factor: 3, influence: 1, want: 10},
		{name: "factor clamped below zero", value: 10, factor: -1, influence: 1, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyFactor(tc.value, tc.factor, tc.influence)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestBoundedFraction(t *testing.T) {
	if got := BoundedFraction(250, 500); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := BoundedFraction(900, 500); got != 1 {
		t.Fatalf("expected clamp to 1, got %v", got)
	}
	if got := BoundedFraction(5, 0); got != 1 {
		t.Fatalf("expected 1 for zero bound, got %v", got)
	}
}

func TestSnapAndBounds(t *testing.T) {
	snapped := V(5.9, -6.1, 1.9).Snap(4)
	if snapped != V(4, -8, 0) {
		t.Fatalf("unexpected snap result %v", snapped)
	}
	if !BoundsContain(V(0, 0, 0), V(1, 1, 1), V(1, 0.5, 0)) {
		t.Fatalf("expected boundary point to be contained")
	}
	if BoundsIntersect(V(0, 0, 0), V(1, 1, 1), V(2, 0, 0), V(3, 1, 1)) {
		t.Fatalf("expected disjoint boxes not to intersect")
	}
}
