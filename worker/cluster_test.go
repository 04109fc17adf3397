package worker

import (
	"context"
	"fmt"

	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/algorithm/sssp"
	"github.com/pregelhq/pregel/algorithm/wcc"
	"github.com/pregelhq/pregel/conductor"
	"github.com/pregelhq/pregel/graph"
	"github.com/pregelhq/pregel/protocol"
	"github.com/pregelhq/pregel/status"
	"github.com/pregelhq/pregel/store/memory"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(ClusterTestSuite))

// ClusterTestSuite runs complete jobs with a conductor and several workers
// that exchange messages through a deterministic in-process queue.
type ClusterTestSuite struct {
	router *queueRouter
	store  *memory.InMemoryStore
	board  *status.Board
	reg    *algorithm.Registry
}

func (s *ClusterTestSuite) SetUpTest(c *gc.C) {
	s.router = newQueueRouter()
	s.store = memory.NewInMemoryStore()
	s.board = status.NewBoard()
	s.reg = algorithm.NewRegistry()
	s.reg.Register(wcc.Name, wcc.New)
	s.reg.Register(sssp.Name, sssp.New)
}

func (s *ClusterTestSuite) TestConnectedComponents(c *gc.C) {
	src := graph.SourceSpec{
		Kind: graph.SourceMemory,
		Edges: []graph.EdgeSpec{
			{Src: "b", Dst: "c"},
			{Src: "c", Dst: "d"},
			{Src: "d", Dst: "e"},
			{Src: "x", Dst: "y"},
		},
		Vertices:   []string{"z"},
		Undirected: true,
	}

	got := s.runJob(c, "job-wcc", wcc.Name, nil, src)
	c.Assert(got, gc.DeepEquals, map[string]string{
		"b": `"b"`,
		"c": `"b"`,
		"d": `"b"`,
		"e": `"b"`,
		"x": `"x"`,
		"y": `"x"`,
		"z": `"z"`,
	})
}

func (s *ClusterTestSuite) TestShortestPaths(c *gc.C) {
	costMat := [][]int{
		{0, 4, 0, 0, 0, 0, 0, 8, 0},
		{4, 0, 8, 0, 0, 0, 0, 11, 0},
		{0, 8, 0, 7, 0, 4, 0, 0, 2},
		{0, 0, 7, 0, 9, 14, 0, 0, 0},
		{0, 0, 0, 9, 0, 10, 0, 0, 0},
		{0, 0, 4, 0, 10, 0, 2, 0, 0},
		{0, 0, 0, 14, 0, 2, 0, 1, 6},
		{8, 11, 0, 0, 0, 0, 1, 0, 7},
		{0, 0, 2, 0, 0, 0, 6, 7, 0},
	}
	src := graph.SourceSpec{Kind: graph.SourceMemory}
	for from, dstWeights := range costMat {
		for to, weight := range dstWeights {
			if weight != 0 {
				src.Edges = append(src.Edges, graph.EdgeSpec{Src: fmt.Sprint(from), Dst: fmt.Sprint(to), Weight: weight})
			}
		}
	}

	got := s.runJob(c, "job-sssp", sssp.Name, algorithm.Params{"source": "0"}, src)
	c.Assert(got, gc.DeepEquals, map[string]string{
		"0": `{"cost":0}`,
		"1": `{"cost":4,"via":"0"}`,
		"2": `{"cost":12,"via":"1"}`,
		"3": `{"cost":19,"via":"2"}`,
		"4": `{"cost":21,"via":"5"}`,
		"5": `{"cost":11,"via":"6"}`,
		"6": `{"cost":9,"via":"7"}`,
		"7": `{"cost":8,"via":"0"}`,
		"8": `{"cost":14,"via":"2"}`,
	})
}

func (s *ClusterTestSuite) TestUnknownAlgorithmFailsJob(c *gc.C) {
	workers := s.spawnWorkers(c, 2)
	cond := s.spawnConductor(c, "job-bad", "bogus", wcc.New, nil, workers, graph.SourceSpec{Kind: graph.SourceGenerated, NumVertices: 4})

	c.Assert(s.router.Dispatch(actor.PID{}, cond, protocol.Start{}), gc.IsNil)
	s.router.run(c)

	job, err := s.board.Job("job-bad")
	c.Assert(err, gc.IsNil)
	c.Assert(job.Outcome, gc.Equals, status.Failed)
	c.Assert(job.Error, gc.Matches, `.*"bogus": unknown algorithm`)
	c.Assert(s.router.actors, gc.HasLen, 0, gc.Commentf("expected every actor to exit"))
}

func (s *ClusterTestSuite) runJob(c *gc.C, jobID, algName string, params algorithm.Params, src graph.SourceSpec) map[string]string {
	workers := s.spawnWorkers(c, 3)
	factory := wcc.New
	if algName == sssp.Name {
		factory = sssp.New
	}
	cond := s.spawnConductor(c, jobID, algName, factory, params, workers, src)

	c.Assert(s.router.Dispatch(actor.PID{}, cond, protocol.Start{}), gc.IsNil)
	s.router.run(c)

	job, err := s.board.Job(jobID)
	c.Assert(err, gc.IsNil)
	c.Assert(job.Outcome, gc.Equals, status.Succeeded, gc.Commentf("job error: %s", job.Error))
	c.Assert(s.router.actors, gc.HasLen, 0, gc.Commentf("expected every actor to exit"))

	results, err := s.store.Results(context.TODO(), jobID)
	c.Assert(err, gc.IsNil)
	got := make(map[string]string, len(results))
	for _, res := range results {
		got[res.VertexID] = string(res.Value)
	}
	return got
}

func (s *ClusterTestSuite) spawnWorkers(c *gc.C, n int) []actor.PID {
	var pids []actor.PID
	for i := 0; i < n; i++ {
		pid := actor.PID{Server: fmt.Sprintf("srv-%d", i), Actor: "worker"}
		w, err := New(pid, Config{
			Algorithms: s.reg,
			Store:      s.store,
			Router:     s.router,
			Status:     s.board,
		})
		c.Assert(err, gc.IsNil)
		s.router.actors[pid] = w
		pids = append(pids, pid)
	}
	return pids
}

func (s *ClusterTestSuite) spawnConductor(c *gc.C, jobID, algName string, factory algorithm.Factory, params algorithm.Params, workers []actor.PID, src graph.SourceSpec) actor.PID {
	alg, err := factory(params)
	c.Assert(err, gc.IsNil)

	pid := actor.PID{Server: "srv-0", Actor: "conductor-" + jobID}
	cond, err := conductor.New(pid, conductor.Config{
		JobID:      jobID,
		Algorithm:  algName,
		Params:     params,
		Alg:        alg,
		Workers:    workers,
		Source:     src,
		Store:      true,
		Dispatcher: s.router,
		Status:     s.board,
	})
	c.Assert(err, gc.IsNil)
	s.router.actors[pid] = cond
	return pid
}

type envelope struct {
	sender, receiver actor.PID
	msg              interface{}
}

// queueRouter delivers messages one at a time in FIFO order. Messages sent
// while an actor processes a message are appended to the queue.
type queueRouter struct {
	actors map[actor.PID]actor.Actor
	queue  []envelope
}

func newQueueRouter() *queueRouter {
	return &queueRouter{actors: make(map[actor.PID]actor.Actor)}
}

func (r *queueRouter) Dispatch(sender, receiver actor.PID, msg interface{}) error {
	if _, exists := r.actors[receiver]; !exists {
		return xerrors.Errorf("no actor with PID %s", receiver)
	}
	// Messages must survive a round-trip through the wire format.
	payload, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	if msg, err = protocol.Unmarshal(payload); err != nil {
		return err
	}
	r.queue = append(r.queue, envelope{sender: sender, receiver: receiver, msg: msg})
	return nil
}

func (r *queueRouter) run(c *gc.C) {
	for delivered := 0; len(r.queue) != 0; delivered++ {
		c.Assert(delivered < 100000, gc.Equals, true, gc.Commentf("message loop did not settle"))

		env := r.queue[0]
		r.queue = r.queue[1:]
		a, exists := r.actors[env.receiver]
		if !exists {
			continue
		}
		if a.Receive(env.sender, env.msg) {
			delete(r.actors, env.receiver)
		}
	}
}
