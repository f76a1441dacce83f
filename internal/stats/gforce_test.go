package stats

import (
	"math"
	"testing"
)

func TestGForce_Empty(t *testing.T) {
	g := NewGForce()
	result := g.Result()
	if result.Count != 0 {
		t.Errorf("expected count=0, got %d", result.Count)
	}
	if result.Min != 0 || result.Max != 0 || result.Avg != 0 {
		t.Errorf("empty aggregate should be all zero: %+v", result)
	}
}

func TestGForce_MinMaxAvg(t *testing.T) {
	g := NewGForce()
	for _, v := range []float64{1.0, 0.8, 1.4, 1.0} {
		g.Add(v)
	}

	result := g.Result()
	if result.Count != 4 {
		t.Errorf("expected count=4, got %d", result.Count)
	}
	if result.Min != 0.8 {
		t.Errorf("expected min=0.8, got %v", result.Min)
	}
	if result.Max != 1.4 {
		t.Errorf("expected max=1.4, got %v", result.Max)
	}
	if math.Abs(result.Avg-1.05) > 1e-9 {
		t.Errorf("expected avg=1.05, got %v", result.Avg)
	}
}

func TestGForce_Quantiles(t *testing.T) {
	g := NewGForce()
	// 1000 evenly spread values in [0.5, 1.5).
	for i := 0; i < 1000; i++ {
		g.Add(0.5 + float64(i)/1000)
	}

	result := g.Result()
	// DDSketch guarantees 1% relative accuracy.
	if math.Abs(result.P50-1.0) > 0.05 {
		t.Errorf("p50 out of range: %v", result.P50)
	}
	if math.Abs(result.P99-1.49) > 0.05 {
		t.Errorf("p99 out of range: %v", result.P99)
	}
	if result.P95 < result.P50 || result.P99 < result.P95 {
		t.Errorf("quantiles not monotone: %+v", result)
	}
}

func TestGForce_Reset(t *testing.T) {
	g := NewGForce()
	g.Add(2.5)
	g.Add(0.5)
	g.Reset()

	if g.Count() != 0 {
		t.Errorf("expected count=0 after reset, got %d", g.Count())
	}

	g.Add(1.0)
	result := g.Result()
	if result.Count != 1 || result.Min != 1.0 || result.Max != 1.0 {
		t.Errorf("old values leaked past reset: %+v", result)
	}
	if math.Abs(result.P99-1.0) > 0.02 {
		t.Errorf("sketch not reset: p99=%v", result.P99)
	}
}
