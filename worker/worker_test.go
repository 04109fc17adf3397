package worker

import (
	"context"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pregelhq/pregel/actor"
	"github.com/pregelhq/pregel/algorithm"
	"github.com/pregelhq/pregel/algorithm/wcc"
	"github.com/pregelhq/pregel/graph"
	"github.com/pregelhq/pregel/protocol"
	"github.com/pregelhq/pregel/store/memory"
	"github.com/pregelhq/pregel/worker/mocks"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(WorkerStateTestSuite))

func Test(t *testing.T) {
	// Run all gocheck test-suites
	gc.TestingT(t)
}

var (
	self          = actor.PID{Server: "srv-1", Actor: "w0"}
	peer          = actor.PID{Server: "srv-2", Actor: "w1"}
	conductorPID  = actor.PID{Server: "srv-0", Actor: "conductor"}
	errUnexpected = fmt.Errorf("unexpected dispatch")
)

type routerFunc func(sender, receiver actor.PID, msg interface{}) error

func (f routerFunc) Dispatch(sender, receiver actor.PID, msg interface{}) error {
	return f(sender, receiver, msg)
}

type WorkerStateTestSuite struct {
	store *memory.InMemoryStore
}

func (s *WorkerStateTestSuite) SetUpTest(c *gc.C) {
	s.store = memory.NewInMemoryStore()
}

func (s *WorkerStateTestSuite) newState(c *gc.C) *State {
	reg := algorithm.NewRegistry()
	reg.Register(wcc.Name, wcc.New)

	st, err := NewState(self, Config{
		Algorithms: reg,
		Store:      s.store,
		Router: routerFunc(func(actor.PID, actor.PID, interface{}) error {
			return errUnexpected
		}),
	})
	c.Assert(err, gc.IsNil)
	return st
}

func (s *WorkerStateTestSuite) TestConfigValidation(c *gc.C) {
	_, err := NewState(self, Config{StoreTimeout: -1})
	c.Assert(err, gc.ErrorMatches, "(?ms).*algorithm registry not specified.*")
	c.Assert(err, gc.ErrorMatches, "(?ms).*message router not specified.*")
	c.Assert(err, gc.ErrorMatches, "(?ms).*invalid value for store timeout.*")
}

// A worker that has not been started rejects a superstep request.
func (s *WorkerStateTestSuite) TestRejectSuperstepInInitialState(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	d := mocks.NewMockDispatcher(ctrl)
	d.EXPECT().ToStatus(gomock.Any()).AnyTimes()

	st := s.newState(c)
	d.EXPECT().ToConductor(protocol.WorkerError{
		Reason: "initial: unexpected message RunSuperstep from srv-0/conductor",
	}).Return(ErrNoConductor)

	cur := apply(st, NewInitialState(st), conductorPID, protocol.RunSuperstep{Superstep: 1}, d)
	c.Assert(cur.Name(), gc.Equals, "fatal_error")
	c.Assert(IsTerminal(cur), gc.Equals, false)

	// Anything but a cleanup request is ignored from now on.
	cur = apply(st, cur, conductorPID, protocol.Store{}, d)
	c.Assert(cur.Name(), gc.Equals, "fatal_error")

	d.EXPECT().ToConductor(protocol.CleanupFinished{}).Return(nil)
	cur = apply(st, cur, conductorPID, protocol.Cleanup{}, d)
	c.Assert(cur.Name(), gc.Equals, "cleaned_up")
	c.Assert(IsTerminal(cur), gc.Equals, true)
}

func (s *WorkerStateTestSuite) TestRejectConductorMessage(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	d := mocks.NewMockDispatcher(ctrl)
	d.EXPECT().ToStatus(gomock.Any()).AnyTimes()
	d.EXPECT().ToConductor(protocol.WorkerError{
		Reason: "initial: unexpected message SuperstepFinished from srv-2/w1",
	}).Return(nil)

	st := s.newState(c)
	cur := apply(st, NewInitialState(st), peer, protocol.SuperstepFinished{}, d)
	c.Assert(cur.Name(), gc.Equals, "fatal_error")
}

func (s *WorkerStateTestSuite) TestUnknownAlgorithm(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	d := mocks.NewMockDispatcher(ctrl)
	d.EXPECT().ToStatus(gomock.Any()).AnyTimes()
	d.EXPECT().ToConductor(gomock.Any()).DoAndReturn(func(msg protocol.ConductorMessage) error {
		reply, ok := msg.(protocol.WorkerCreated)
		c.Assert(ok, gc.Equals, true)
		c.Assert(reply.Err, gc.Matches, `"bogus": unknown algorithm`)
		return nil
	})

	st := s.newState(c)
	cur := apply(st, NewInitialState(st), conductorPID, protocol.WorkerStart{
		JobID:     "job-1",
		Algorithm: "bogus",
		Conductor: conductorPID,
	}, d)
	c.Assert(cur.Name(), gc.Equals, "fatal_error")
}

func (s *WorkerStateTestSuite) TestSingleWorkerLifecycle(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	d := mocks.NewMockDispatcher(ctrl)
	d.EXPECT().ToStatus(gomock.Any()).AnyTimes()
	d.EXPECT().ToMetrics(gomock.Any()).AnyTimes()

	st := s.newState(c)
	cur := s.startAndLoad(c, d, st, []actor.PID{self}, graph.SourceSpec{
		Kind:       graph.SourceMemory,
		Edges:      []graph.EdgeSpec{{Src: "b", Dst: "a"}, {Src: "b", Dst: "c"}},
		Undirected: true,
	})
	c.Assert(st.Partition().NumVertices(), gc.Equals, 3)
	c.Assert(st.Partition().NumEdges(), gc.Equals, 4)

	for step := 0; step < 3; step++ {
		d.EXPECT().ToConductor(gomock.Any()).DoAndReturn(func(msg protocol.ConductorMessage) error {
			reply, ok := msg.(protocol.SuperstepFinished)
			c.Assert(ok, gc.Equals, true)
			c.Assert(reply.Superstep, gc.Equals, step)
			c.Assert(reply.Err, gc.Equals, "")
			return nil
		})
		cur = apply(st, cur, conductorPID, protocol.RunSuperstep{Superstep: step}, d)
		c.Assert(cur.Name(), gc.Equals, "computing")
		c.Assert(st.Superstep(), gc.Equals, step+1)
	}

	// Supersteps must be requested in order.
	d.EXPECT().ToConductor(gomock.Any()).Return(nil)
	next := apply(st, cur, conductorPID, protocol.RunSuperstep{Superstep: 7}, d)
	c.Assert(next.Name(), gc.Equals, "fatal_error")

	// Start over and store the results this time.
	st = s.newState(c)
	cur = s.startAndLoad(c, d, st, []actor.PID{self}, graph.SourceSpec{
		Kind:       graph.SourceMemory,
		Edges:      []graph.EdgeSpec{{Src: "b", Dst: "a"}, {Src: "b", Dst: "c"}},
		Undirected: true,
	})
	d.EXPECT().ToConductor(gomock.Any()).Return(nil).Times(3)
	for step := 0; step < 3; step++ {
		cur = apply(st, cur, conductorPID, protocol.RunSuperstep{Superstep: step}, d)
	}

	d.EXPECT().ToSelf(protocol.Store{}).Return(nil)
	cur = apply(st, cur, conductorPID, protocol.Store{}, d)
	c.Assert(cur.Name(), gc.Equals, "storing")

	d.EXPECT().ToConductor(protocol.ResultsStored{Stored: 3}).Return(nil)
	cur = apply(st, cur, self, protocol.Store{}, d)
	c.Assert(cur.Name(), gc.Equals, "storing")

	results, err := s.store.Results(context.TODO(), "job-1")
	c.Assert(err, gc.IsNil)
	c.Assert(results, gc.HasLen, 3)
	for _, res := range results {
		c.Assert(string(res.Value), gc.Equals, `"a"`)
	}

	d.EXPECT().ToConductor(protocol.CleanupFinished{}).Return(nil)
	cur = apply(st, cur, conductorPID, protocol.Cleanup{}, d)
	c.Assert(IsTerminal(cur), gc.Equals, true)
	c.Assert(st.Partition(), gc.IsNil)
}

func (s *WorkerStateTestSuite) TestPeerBarrier(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	d := mocks.NewMockDispatcher(ctrl)
	d.EXPECT().ToStatus(gomock.Any()).AnyTimes()
	d.EXPECT().ToMetrics(gomock.Any()).AnyTimes()

	src := graph.SourceSpec{Kind: graph.SourceMemory}
	for i := 0; i < 32; i++ {
		src.Vertices = append(src.Vertices, fmt.Sprintf("v%02d", i))
	}

	st := s.newState(c)
	cur := s.startAndLoad(c, d, st, []actor.PID{self, peer}, src)
	var localID string
	for id := range st.Partition().Vertices() {
		localID = id
		break
	}
	c.Assert(localID, gc.Not(gc.Equals), "", gc.Commentf("expected the worker to own at least one vertex"))

	payload, err := new(wcc.Components).Serializer().Serialize(wcc.LabelMessage{Label: "a"})
	c.Assert(err, gc.IsNil)
	batch := func(step int) protocol.VertexMessages {
		return protocol.VertexMessages{
			Superstep: step,
			Messages:  []protocol.VertexMessage{{Dst: localID, Payload: payload}},
		}
	}

	expSuperstep := func(step int) {
		d.EXPECT().ToWorker(peer, protocol.VertexMessages{Superstep: step}).Return(nil)
		d.EXPECT().ToConductor(gomock.Any()).DoAndReturn(func(msg protocol.ConductorMessage) error {
			c.Assert(msg.(protocol.SuperstepFinished).Superstep, gc.Equals, step)
			return nil
		})
	}

	// The peer finished superstep 0 before we were asked to run it.
	cur = apply(st, cur, peer, batch(0), d)
	expSuperstep(0)
	cur = apply(st, cur, conductorPID, protocol.RunSuperstep{Superstep: 0}, d)
	c.Assert(st.Superstep(), gc.Equals, 1)

	// The batch for superstep 0 is already there.
	expSuperstep(1)
	cur = apply(st, cur, conductorPID, protocol.RunSuperstep{Superstep: 1}, d)
	c.Assert(st.Superstep(), gc.Equals, 2)
	c.Assert(st.Partition().Vertices()[localID].Value(), gc.Equals, "a")

	// Superstep 2 has to wait for the batch of superstep 1.
	cur = apply(st, cur, conductorPID, protocol.RunSuperstep{Superstep: 2}, d)
	c.Assert(st.Superstep(), gc.Equals, 2)
	expSuperstep(2)
	cur = apply(st, cur, peer, batch(1), d)
	c.Assert(st.Superstep(), gc.Equals, 3)
	c.Assert(cur.Name(), gc.Equals, "computing")

	// Stale batches are a protocol violation.
	d.EXPECT().ToConductor(gomock.Any()).Return(nil)
	cur = apply(st, cur, peer, batch(0), d)
	c.Assert(cur.Name(), gc.Equals, "fatal_error")
	c.Assert(st.Err(), gc.Matches, "received messages for superstep 0 from srv-2/w1 while at superstep 3")
}

func (s *WorkerStateTestSuite) TestDuplicateBatch(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	d := mocks.NewMockDispatcher(ctrl)
	d.EXPECT().ToStatus(gomock.Any()).AnyTimes()
	d.EXPECT().ToMetrics(gomock.Any()).AnyTimes()

	st := s.newState(c)
	cur := s.startAndLoad(c, d, st, []actor.PID{self, peer}, graph.SourceSpec{Kind: graph.SourceGenerated, NumVertices: 8})
	cur = apply(st, cur, peer, protocol.VertexMessages{Superstep: 0}, d)

	d.EXPECT().ToConductor(gomock.Any()).Return(nil)
	cur = apply(st, cur, peer, protocol.VertexMessages{Superstep: 0}, d)
	c.Assert(cur.Name(), gc.Equals, "fatal_error")
	c.Assert(st.Err(), gc.Matches, "duplicate messages for superstep 0 from srv-2/w1")
}

func (s *WorkerStateTestSuite) TestCancel(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	d := mocks.NewMockDispatcher(ctrl)
	d.EXPECT().ToStatus(gomock.Any()).AnyTimes()
	d.EXPECT().ToMetrics(gomock.Any()).AnyTimes()

	st := s.newState(c)
	cur := s.startAndLoad(c, d, st, []actor.PID{self}, graph.SourceSpec{Kind: graph.SourceGenerated, NumVertices: 8})

	d.EXPECT().ToConductor(protocol.WorkerError{Reason: "worker canceled"}).Return(nil)
	cur = apply(st, cur, conductorPID, protocol.Cancel{}, d)
	c.Assert(cur.Name(), gc.Equals, "canceled")
	c.Assert(st.Partition(), gc.IsNil)

	// Cancel is idempotent and stray messages are ignored.
	cur = apply(st, cur, conductorPID, protocol.Cancel{}, d)
	cur = apply(st, cur, conductorPID, protocol.RunSuperstep{}, d)
	c.Assert(cur.Name(), gc.Equals, "canceled")

	d.EXPECT().ToConductor(protocol.CleanupFinished{}).Return(nil)
	cur = apply(st, cur, conductorPID, protocol.Cleanup{}, d)
	c.Assert(cur.Name(), gc.Equals, "cleaned_up")
}

func (s *WorkerStateTestSuite) TestLoadGraphFromWrongSender(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	d := mocks.NewMockDispatcher(ctrl)
	d.EXPECT().ToStatus(gomock.Any()).AnyTimes()
	d.EXPECT().ToMetrics(gomock.Any()).AnyTimes()

	st := s.newState(c)
	d.EXPECT().ToConductor(protocol.WorkerCreated{}).Return(nil)
	cur := apply(st, NewInitialState(st), conductorPID, protocol.WorkerStart{JobID: "job-1", Algorithm: wcc.Name, Conductor: conductorPID}, d)

	load := protocol.LoadGraph{Workers: []actor.PID{self}, Source: graph.SourceSpec{Kind: graph.SourceGenerated, NumVertices: 4}}
	d.EXPECT().ToSelf(load).Return(nil)
	cur = apply(st, cur, conductorPID, load, d)
	c.Assert(cur.Name(), gc.Equals, "loading")

	d.EXPECT().ToConductor(gomock.Any()).Return(nil)
	cur = apply(st, cur, conductorPID, load, d)
	c.Assert(cur.Name(), gc.Equals, "fatal_error")
}

func (s *WorkerStateTestSuite) TestLoadFailure(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	d := mocks.NewMockDispatcher(ctrl)
	d.EXPECT().ToStatus(gomock.Any()).AnyTimes()
	d.EXPECT().ToMetrics(gomock.Any()).AnyTimes()

	st := s.newState(c)
	d.EXPECT().ToConductor(protocol.WorkerCreated{}).Return(nil)
	cur := apply(st, NewInitialState(st), conductorPID, protocol.WorkerStart{JobID: "job-1", Algorithm: wcc.Name, Conductor: conductorPID}, d)

	// The worker is not part of the worker list.
	load := protocol.LoadGraph{Workers: []actor.PID{peer}, Source: graph.SourceSpec{Kind: graph.SourceGenerated, NumVertices: 4}}
	d.EXPECT().ToSelf(load).Return(nil)
	cur = apply(st, cur, conductorPID, load, d)

	d.EXPECT().ToConductor(protocol.GraphLoaded{Err: "worker srv-1/w0 is not part of the worker list"}).Return(nil)
	cur = apply(st, cur, self, load, d)
	c.Assert(cur.Name(), gc.Equals, "fatal_error")
}

func (s *WorkerStateTestSuite) TestStoreWithoutPersistence(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()
	d := mocks.NewMockDispatcher(ctrl)
	d.EXPECT().ToStatus(gomock.Any()).AnyTimes()
	d.EXPECT().ToMetrics(gomock.Any()).AnyTimes()

	st := s.newState(c)
	d.EXPECT().ToConductor(protocol.WorkerCreated{}).Return(nil)
	cur := apply(st, NewInitialState(st), conductorPID, protocol.WorkerStart{JobID: "job-2", Algorithm: wcc.Name, Conductor: conductorPID}, d)
	load := protocol.LoadGraph{Workers: []actor.PID{self}, Source: graph.SourceSpec{Kind: graph.SourceGenerated, NumVertices: 4}}
	d.EXPECT().ToSelf(load).Return(nil)
	cur = apply(st, cur, conductorPID, load, d)
	d.EXPECT().ToConductor(gomock.Any()).Return(nil)
	cur = apply(st, cur, self, load, d)

	d.EXPECT().ToSelf(protocol.Store{}).Return(nil)
	cur = apply(st, cur, conductorPID, protocol.Store{}, d)
	d.EXPECT().ToConductor(protocol.ResultsStored{Stored: 0}).Return(nil)
	cur = apply(st, cur, self, protocol.Store{}, d)
	c.Assert(cur.Name(), gc.Equals, "storing")

	_, err := s.store.Results(context.TODO(), "job-2")
	c.Assert(err, gc.NotNil)
}

func (s *WorkerStateTestSuite) startAndLoad(c *gc.C, d *mocks.MockDispatcher, st *State, workers []actor.PID, src graph.SourceSpec) ExecutionState {
	d.EXPECT().ToConductor(protocol.WorkerCreated{}).Return(nil)
	cur := apply(st, NewInitialState(st), conductorPID, protocol.WorkerStart{
		JobID:     "job-1",
		Algorithm: wcc.Name,
		Conductor: conductorPID,
		Store:     true,
	}, d)
	c.Assert(cur.Name(), gc.Equals, "initial")
	c.Assert(st.Conductor(), gc.Equals, conductorPID)

	load := protocol.LoadGraph{Workers: workers, Source: src}
	d.EXPECT().ToSelf(load).Return(nil)
	cur = apply(st, cur, conductorPID, load, d)
	c.Assert(cur.Name(), gc.Equals, "loading")

	d.EXPECT().ToConductor(gomock.Any()).DoAndReturn(func(msg protocol.ConductorMessage) error {
		reply, ok := msg.(protocol.GraphLoaded)
		c.Assert(ok, gc.Equals, true)
		c.Assert(reply.Err, gc.Equals, "")
		return nil
	})
	cur = apply(st, cur, self, load, d)
	c.Assert(cur.Name(), gc.Equals, "computing")
	return cur
}
