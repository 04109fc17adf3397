package aggregator

import (
	"sort"

	"github.com/golang/protobuf/ptypes/any"
	"golang.org/x/xerrors"
)

// Set is a collection of named aggregators. A Set is owned by a single
// conductor or worker and is not safe for concurrent registration; the
// aggregators themselves may be updated concurrently by compute workers.
type Set struct {
	aggregators map[string]Aggregator
}

// NewSet returns an empty aggregator Set.
func NewSet() *Set {
	return &Set{aggregators: make(map[string]Aggregator)}
}

// Register adds an aggregator with the specified name into the set.
func (s *Set) Register(name string, aggr Aggregator) { s.aggregators[name] = aggr }

// Get returns the aggregator with the specified name or nil if the aggregator
// does not exist.
func (s *Set) Get(name string) Aggregator { return s.aggregators[name] }

// Len returns the number of registered aggregators.
func (s *Set) Len() int { return len(s.aggregators) }

// Names returns the sorted list of registered aggregator names.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.aggregators))
	for name := range s.aggregators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the current value of every aggregator.
func (s *Set) Snapshot() map[string]interface{} {
	values := make(map[string]interface{}, len(s.aggregators))
	for name, aggr := range s.aggregators {
		values[name] = aggr.Get()
	}
	return values
}

// EncodeValues serializes the current value of every aggregator.
func (s *Set) EncodeValues() (map[string]*any.Any, error) {
	return s.encode(func(aggr Aggregator) interface{} { return aggr.Get() })
}

// EncodeDeltas serializes the delta of every aggregator since the last call
// to EncodeDeltas or SetValues.
func (s *Set) EncodeDeltas() (map[string]*any.Any, error) {
	return s.encode(func(aggr Aggregator) interface{} { return aggr.Delta() })
}

func (s *Set) encode(valueFn func(Aggregator) interface{}) (map[string]*any.Any, error) {
	if len(s.aggregators) == 0 {
		return nil, nil
	}

	values := make(map[string]*any.Any, len(s.aggregators))
	for name, aggr := range s.aggregators {
		encoded, err := EncodeValue(valueFn(aggr))
		if err != nil {
			return nil, xerrors.Errorf("unable to serialize value for aggregator %q: %w", name, err)
		}
		values[name] = encoded
	}
	return values, nil
}

// MergeDeltas feeds a set of serialized deltas reported by a worker into the
// Aggregate method of the matching local aggregators.
func (s *Set) MergeDeltas(deltas map[string]*any.Any) error {
	for name, encoded := range deltas {
		aggr := s.aggregators[name]
		if aggr == nil {
			return xerrors.Errorf("received a delta for aggregator %q which is not registered", name)
		}

		val, err := DecodeValue(encoded)
		if err != nil {
			return xerrors.Errorf("unable to unserialize delta value for aggregator %q: %w", name, err)
		}
		aggr.Aggregate(val)
	}
	return nil
}

// SetValues overwrites the local aggregators with a set of serialized global
// values.
func (s *Set) SetValues(values map[string]*any.Any) error {
	for name, encoded := range values {
		aggr := s.aggregators[name]
		if aggr == nil {
			return xerrors.Errorf("received a value for aggregator %q which is not registered", name)
		}

		val, err := DecodeValue(encoded)
		if err != nil {
			return xerrors.Errorf("unable to unserialize value for aggregator %q: %w", name, err)
		}
		aggr.Set(val)
	}
	return nil
}
