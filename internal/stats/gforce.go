// Package stats maintains running statistics over the total-g magnitude
// of logged samples, one aggregate per session.
package stats

import (
	"math"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"
)

// defaultAccuracy is the DDSketch relative accuracy (1% error).
const defaultAccuracy = 0.01

// GForce maintains count/min/max/avg and quantiles of total-g values for
// the lifetime of one session.
type GForce struct {
	mu sync.Mutex

	count int64
	sum   float64
	min   float64
	max   float64

	sketch *ddsketch.DDSketch
}

// NewGForce creates an empty aggregate.
func NewGForce() *GForce {
	g := &GForce{
		min: math.MaxFloat64,
		max: -math.MaxFloat64,
	}

	sketch, err := ddsketch.NewDefaultDDSketch(defaultAccuracy)
	if err == nil {
		g.sketch = sketch
	}

	return g
}

// Add records one total-g value.
func (g *GForce) Add(value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.count++
	g.sum += value

	if value < g.min {
		g.min = value
	}
	if value > g.max {
		g.max = value
	}

	if g.sketch != nil {
		g.sketch.Add(value)
	}
}

// Count returns the number of values recorded.
func (g *GForce) Count() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Result is the aggregation snapshot.
type Result struct {
	Count int64
	Min   float64
	Max   float64
	Avg   float64
	P50   float64
	P95   float64
	P99   float64
}

// Result returns the current aggregation snapshot.
func (g *GForce) Result() Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := Result{Count: g.count}
	if g.count == 0 {
		return result
	}

	result.Min = g.min
	result.Max = g.max
	result.Avg = g.sum / float64(g.count)

	if g.sketch != nil {
		result.P50, _ = g.sketch.GetValueAtQuantile(0.50)
		result.P95, _ = g.sketch.GetValueAtQuantile(0.95)
		result.P99, _ = g.sketch.GetValueAtQuantile(0.99)
	}

	return result
}

// Reset clears the aggregate for a new session.
func (g *GForce) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.count = 0
	g.sum = 0
	g.min = math.MaxFloat64
	g.max = -math.MaxFloat64

	// DDSketch has no clear; start a fresh sketch.
	sketch, err := ddsketch.NewDefaultDDSketch(defaultAccuracy)
	if err == nil {
		g.sketch = sketch
	}
}
