// Package storetest provides a re-usable test-suite for ResultStore
// implementations.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pregelhq/pregel/store"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

// SuiteBase defines a re-usable set of tests that can be executed against
// any type that implements store.ResultStore.
type SuiteBase struct {
	s store.ResultStore
}

// SetStore configures the test-suite to run all tests against s.
func (s *SuiteBase) SetStore(rs store.ResultStore) {
	s.s = rs
}

// TestStoreAndFetch verifies that stored results are returned in vertex ID
// order.
func (s *SuiteBase) TestStoreAndFetch(c *gc.C) {
	jobID := "job-store-and-fetch"
	results := []store.VertexResult{
		mustEncode(c, "b", 0.25),
		mustEncode(c, "a", map[string]int{"cost": 3}),
		mustEncode(c, "c", nil),
	}
	c.Assert(s.s.StoreResults(context.TODO(), jobID, results), gc.IsNil)

	got, err := s.s.Results(context.TODO(), jobID)
	c.Assert(err, gc.IsNil)
	c.Assert(got, gc.HasLen, 3)

	expValues := map[string]interface{}{
		"a": map[string]interface{}{"cost": 3.0},
		"b": 0.25,
		"c": nil,
	}
	for i, id := range []string{"a", "b", "c"} {
		c.Assert(got[i].VertexID, gc.Equals, id)
		var val interface{}
		c.Assert(json.Unmarshal(got[i].Value, &val), gc.IsNil)
		c.Assert(val, gc.DeepEquals, expValues[id], gc.Commentf("vertex %s", id))
	}
}

// TestConcurrentWorkers verifies that multiple workers can store disjoint
// batches for the same job concurrently.
func (s *SuiteBase) TestConcurrentWorkers(c *gc.C) {
	jobID := "job-concurrent"

	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var batch []store.VertexResult
			for i := 0; i < 25; i++ {
				res, err := store.EncodeResult(fmt.Sprintf("w%d-v%02d", w, i), i)
				if err != nil {
					errCh <- err
					return
				}
				batch = append(batch, res)
			}
			errCh <- s.s.StoreResults(context.TODO(), jobID, batch)
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		c.Assert(err, gc.IsNil)
	}

	got, err := s.s.Results(context.TODO(), jobID)
	c.Assert(err, gc.IsNil)
	c.Assert(got, gc.HasLen, 100)
	c.Assert(got[0].VertexID, gc.Equals, "w0-v00")
	c.Assert(got[99].VertexID, gc.Equals, "w3-v24")
}

// TestDeleteAndMissingJobs verifies the behavior for unknown and deleted
// jobs.
func (s *SuiteBase) TestDeleteAndMissingJobs(c *gc.C) {
	_, err := s.s.Results(context.TODO(), "job-missing")
	c.Assert(xerrors.Is(err, store.ErrNotFound), gc.Equals, true)

	jobID := "job-deleted"
	c.Assert(s.s.StoreResults(context.TODO(), jobID, []store.VertexResult{mustEncode(c, "v", 1)}), gc.IsNil)
	c.Assert(s.s.DeleteResults(context.TODO(), jobID), gc.IsNil)

	_, err = s.s.Results(context.TODO(), jobID)
	c.Assert(xerrors.Is(err, store.ErrNotFound), gc.Equals, true)
}

func mustEncode(c *gc.C, id string, value interface{}) store.VertexResult {
	res, err := store.EncodeResult(id, value)
	c.Assert(err, gc.IsNil)
	return res
}
