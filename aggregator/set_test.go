package aggregator

import (
	"github.com/golang/protobuf/ptypes/any"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(SetTestSuite))

type SetTestSuite struct {
}

func (s *SetTestSuite) TestDistributedAggregation(c *gc.C) {
	// The conductor and two workers each keep their own set.
	conductor, w1, w2 := newCountingSet(), newCountingSet(), newCountingSet()

	w1.Get("count").Aggregate(3)
	w1.Get("sum").Aggregate(1.5)
	w2.Get("count").Aggregate(4)
	w2.Get("sum").Aggregate(0.25)

	for _, w := range []*Set{w1, w2} {
		deltas, err := w.EncodeDeltas()
		c.Assert(err, gc.IsNil)
		c.Assert(conductor.MergeDeltas(deltas), gc.IsNil)
	}
	c.Assert(conductor.Get("count").Get(), gc.Equals, 7)
	c.Assert(conductor.Get("sum").Get(), gc.Equals, 1.75)

	// Broadcast global values back to the workers.
	global, err := conductor.EncodeValues()
	c.Assert(err, gc.IsNil)
	for _, w := range []*Set{w1, w2} {
		c.Assert(w.SetValues(global), gc.IsNil)
		c.Assert(w.Snapshot(), gc.DeepEquals, map[string]interface{}{"count": 7, "sum": 1.75})

		// Deltas are reset after the global values are applied.
		deltas, err := w.EncodeDeltas()
		c.Assert(err, gc.IsNil)
		c.Assert(conductor.MergeDeltas(deltas), gc.IsNil)
	}
	c.Assert(conductor.Get("count").Get(), gc.Equals, 7)
}

func (s *SetTestSuite) TestUnknownAggregator(c *gc.C) {
	set := newCountingSet()
	encoded, err := EncodeValue(1)
	c.Assert(err, gc.IsNil)

	err = set.MergeDeltas(map[string]*any.Any{"bogus": encoded})
	c.Assert(err, gc.ErrorMatches, `received a delta for aggregator "bogus" which is not registered`)
	err = set.SetValues(map[string]*any.Any{"bogus": encoded})
	c.Assert(err, gc.ErrorMatches, `received a value for aggregator "bogus" which is not registered`)
}

func (s *SetTestSuite) TestEncodeDecodeErrors(c *gc.C) {
	_, err := EncodeValue("string")
	c.Assert(err, gc.ErrorMatches, ".*unsupported type string")

	_, err = DecodeValue(&any.Any{TypeUrl: "bogus"})
	c.Assert(err, gc.ErrorMatches, `.*unknown type "bogus"`)

	_, err = DecodeValue(nil)
	c.Assert(err, gc.ErrorMatches, ".*nil payload")
}

func (s *SetTestSuite) TestNames(c *gc.C) {
	c.Assert(newCountingSet().Names(), gc.DeepEquals, []string{"count", "sum"})
	values, err := NewSet().EncodeValues()
	c.Assert(err, gc.IsNil)
	c.Assert(values, gc.IsNil)
}

func newCountingSet() *Set {
	set := NewSet()
	set.Register("count", new(IntAccumulator))
	set.Register("sum", new(Float64Accumulator))
	return set
}
