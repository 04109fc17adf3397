package aggregator

import (
	"math"
	"sync/atomic"
)

// Aggregator is implemented by types that provide concurrent-safe aggregation
// primitives (e.g. counters, min/max, topN).
type Aggregator interface {
	// Type returns the type of this aggregator.
	Type() string

	// Set the aggregator to the specified value.
	Set(val interface{})

	// Get the current aggregator value.
	Get() interface{}

	// Aggregate updates the aggregator's value based on the provided value.
	Aggregate(val interface{})

	// Delta returns the change in the aggregator's value since the last
	// call to Delta or Set.
	//
	// Each worker keeps its own aggregator instances. After every
	// superstep the conductor feeds the deltas reported by the workers
	// into the Aggregate method of its own instance and broadcasts the
	// resulting global value back to the workers.
	Delta() interface{}
}

// Float64Accumulator implements a concurrent-safe accumulator for float64
// values. The zero value is ready for use.
type Float64Accumulator struct {
	// Both sums hold math.Float64bits encoded values.
	prevSum atomic.Uint64
	curSum  atomic.Uint64
}

// Type implements Aggregator.
func (a *Float64Accumulator) Type() string { return "Float64Accumulator" }

// Get returns the current value of the accumulator.
func (a *Float64Accumulator) Get() interface{} {
	return math.Float64frombits(a.curSum.Load())
}

// Set the current value of the accumulator and reset its delta.
func (a *Float64Accumulator) Set(v interface{}) {
	bits := math.Float64bits(v.(float64))
	a.curSum.Store(bits)
	a.prevSum.Store(bits)
}

// Aggregate adds a float64 value to the accumulator.
func (a *Float64Accumulator) Aggregate(v interface{}) {
	for v64 := v.(float64); ; {
		oldBits := a.curSum.Load()
		newBits := math.Float64bits(math.Float64frombits(oldBits) + v64)
		if a.curSum.CompareAndSwap(oldBits, newBits) {
			return
		}
	}
}

// Delta returns the change in the accumulator value since the last time it
// was invoked or the last time that Set was invoked.
func (a *Float64Accumulator) Delta() interface{} {
	for {
		curBits := a.curSum.Load()
		prevBits := a.prevSum.Load()
		if a.prevSum.CompareAndSwap(prevBits, curBits) {
			return math.Float64frombits(curBits) - math.Float64frombits(prevBits)
		}
	}
}

// IntAccumulator implements a concurrent-safe accumulator for int values. The
// zero value is ready for use.
type IntAccumulator struct {
	prevSum atomic.Int64
	curSum  atomic.Int64
}

// Type implements Aggregator.
func (a *IntAccumulator) Type() string { return "IntAccumulator" }

// Get returns the current value of the accumulator.
func (a *IntAccumulator) Get() interface{} {
	return int(a.curSum.Load())
}

// Set the current value of the accumulator and reset its delta.
func (a *IntAccumulator) Set(v interface{}) {
	v64 := int64(v.(int))
	a.curSum.Store(v64)
	a.prevSum.Store(v64)
}

// Aggregate adds an int value to the accumulator.
func (a *IntAccumulator) Aggregate(v interface{}) {
	_ = a.curSum.Add(int64(v.(int)))
}

// Delta returns the change in the accumulator value since the last time it
// was invoked or the last time that Set was invoked.
func (a *IntAccumulator) Delta() interface{} {
	for {
		curSum := a.curSum.Load()
		prevSum := a.prevSum.Load()
		if a.prevSum.CompareAndSwap(prevSum, curSum) {
			return int(curSum - prevSum)
		}
	}
}
