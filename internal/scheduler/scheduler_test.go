package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/graph"
	"github.com/vk/framegrid/internal/manifest"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/internal/port"
	"github.com/vk/framegrid/internal/testutil"
)

var smallGray = frame.Geometry{Width: 4, Height: 2, Format: port.Gray8}

var grayOnly = port.Relations{{Input: port.Gray8, Output: port.Gray8}}

// rig wires fake plugins into a graph manager and a scheduler.
type rig struct {
	t         *testing.T
	ctx       context.Context
	m         *graph.Manager
	reg       *plugin.Registry
	factories map[string]*testutil.FakeFactory

	mu     sync.Mutex
	events []Event
}

func newRig(t *testing.T) *rig {
	t.Helper()
	ctx, _ := testutil.LogContext(t)
	r := &rig{t: t, ctx: ctx, reg: plugin.NewRegistry(), factories: make(map[string]*testutil.FakeFactory)}
	r.m = graph.New(r.reg, graph.Options{})
	return r
}

// fake registers an implementation and loads it under label.
func (r *rig) fake(label string, cat plugin.Category, spec testutil.FakeSpec) string {
	r.t.Helper()
	ff := testutil.NewFakeFactory(label, cat, spec)
	r.reg.Register(ff.Factory)
	r.factories[label] = ff
	name, err := r.m.Load(r.ctx, manifest.Plugin{Label: label, Implementation: label, Category: cat})
	require.NoError(r.t, err)
	return name
}

func (r *rig) source(label string, fn func(context.Context, *frame.Frame, *frame.Frame) error) string {
	return r.fake(label, plugin.Source, testutil.FakeSpec{Out: []port.Format{port.Gray8}, Dest: true, ProcessFn: fn})
}

func (r *rig) inplace(label string, fn func(context.Context, *frame.Frame, *frame.Frame) error) string {
	return r.fake(label, plugin.Transform, testutil.FakeSpec{
		In: []port.Format{port.Gray8}, Out: []port.Format{port.Gray8}, Relations: grayOnly, ProcessFn: fn,
	})
}

func (r *rig) sink(label string, spec testutil.FakeSpec) string {
	spec.In = []port.Format{port.Gray8}
	return r.fake(label, plugin.Sink, spec)
}

func (r *rig) instance(label string) *testutil.FakePlugin {
	r.t.Helper()
	instances := r.factories[label].Instances()
	require.Len(r.t, instances, 1)
	return instances[0]
}

func (r *rig) connect(prev, target string) {
	r.t.Helper()
	require.NoError(r.t, r.m.Connect(r.ctx, prev, target, nil))
}

func (r *rig) branch(prev, target string, every int) {
	r.t.Helper()
	r.connect(prev, target)
	require.NoError(r.t, r.m.SetCycle(r.ctx, prev, target, every))
}

func (r *rig) root(name string) {
	r.t.Helper()
	require.NoError(r.t, r.m.SetRoot(r.ctx, name))
}

func (r *rig) scheduler(opts Options) *Scheduler {
	r.t.Helper()
	if opts.Geometry == (frame.Geometry{}) {
		opts.Geometry = smallGray
	}
	opts.OnEvent = func(ev Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
	}
	s, err := New(r.m, opts)
	require.NoError(r.t, err)
	return s
}

func (r *rig) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *rig) lastEvent() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(r.t, r.events)
	return r.events[len(r.events)-1]
}

func TestScheduler_CadenceReleases(t *testing.T) {
	r := newRig(t)
	src := r.source("src", nil)
	main := r.sink("main", testutil.FakeSpec{})
	every1 := r.sink("every1", testutil.FakeSpec{})
	every2 := r.sink("every2", testutil.FakeSpec{})
	every5 := r.sink("every5", testutil.FakeSpec{})
	r.root(src)
	r.connect(src, main)
	r.branch(src, every1, 1)
	r.branch(src, every2, 2)
	r.branch(src, every5, 5)

	s := r.scheduler(Options{MaxFrames: 20})
	require.NoError(t, s.Start(r.ctx, ""))
	require.NoError(t, s.Wait())

	assert.Equal(t, uint64(20), s.Frames())
	assert.Equal(t, 20, r.instance("main").Calls().Process)

	released := map[string]uint64{}
	st := s.Stats()
	for _, b := range st.Branches {
		assert.Equal(t, src, b.Src)
		released[b.Dst] = b.Released
		assert.LessOrEqual(t, b.Woken, b.Released)
	}
	assert.Equal(t, map[string]uint64{every1: 20, every2: 10, every5: 4}, released)
	assert.Contains(t, st.Nodes, main)
	assert.Equal(t, []EventKind{EventStarted, EventStopped}, r.kinds())
	assert.Equal(t, StateStopped, s.State())
}

func TestScheduler_PacedBranchWakesExactly(t *testing.T) {
	for _, every := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("every %d", every), func(t *testing.T) {
			r := newRig(t)
			src := r.source("src", nil)
			main := r.sink("main", testutil.FakeSpec{})
			tap := r.sink("tap", testutil.FakeSpec{})
			r.root(src)
			r.connect(src, main)
			r.branch(src, tap, every)

			s := r.scheduler(Options{FramePeriod: 5 * time.Millisecond, MaxFrames: uint64(2 * every)})
			require.NoError(t, s.Start(r.ctx, ""))
			require.NoError(t, s.Wait())

			assert.Equal(t, 2*every, r.instance("main").Calls().Process)
			assert.Equal(t, 2, r.instance("tap").Calls().Process)
			st := s.Stats()
			require.Len(t, st.Branches, 1)
			assert.Equal(t, uint64(2), st.Branches[0].Released)
			assert.Equal(t, uint64(2), st.Branches[0].Woken)
		})
	}
}

func TestScheduler_CancelledNodeEndsRunCleanly(t *testing.T) {
	r := newRig(t)
	src := r.source("src", func(ctx context.Context, _, out *frame.Frame) error {
		out.Ensure(smallGray)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
			return nil
		}
	})
	main := r.sink("main", testutil.FakeSpec{})
	r.root(src)
	r.connect(src, main)

	ctx, cancel := context.WithCancel(r.ctx)
	s := r.scheduler(Options{})
	require.NoError(t, s.Start(ctx, ""))
	require.Eventually(t, func() bool { return s.Frames() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()

	assert.NoError(t, s.Wait())
	assert.NoError(t, s.Err())
	assert.NotContains(t, r.kinds(), EventFatal)
	assert.Equal(t, 1, r.instance("src").Calls().Finalize)
}

func TestScheduler_NestedBranchesStopPromptly(t *testing.T) {
	r := newRig(t)
	src := r.source("src", nil)
	main := r.sink("main", testutil.FakeSpec{})
	tap1, tap2, tap3 := r.inplace("tap1", nil), r.inplace("tap2", nil), r.inplace("tap3", nil)
	s1 := r.sink("s1", testutil.FakeSpec{})
	s2 := r.sink("s2", testutil.FakeSpec{})
	s3 := r.sink("s3", testutil.FakeSpec{})
	r.root(src)
	r.connect(src, main)
	r.branch(src, tap1, 1)
	r.connect(tap1, s1)
	r.branch(tap1, tap2, 2)
	r.connect(tap2, s2)
	r.branch(tap2, tap3, 4)
	r.connect(tap3, s3)

	s := r.scheduler(Options{FramePeriod: time.Millisecond})
	require.NoError(t, s.Start(r.ctx, ""))
	require.Eventually(t, func() bool { return s.Frames() >= 16 }, 2*time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop(true)
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop(true) did not return")
	}

	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Err())
	for _, label := range []string{"src", "main", "tap1", "tap2", "tap3", "s1", "s2", "s3"} {
		calls := r.instance(label).Calls()
		assert.Equal(t, 1, calls.Init, label)
		assert.Equal(t, 1, calls.Finalize, label)
	}
	assert.Len(t, s.Stats().Branches, 3)
	assert.Equal(t, EventStopped, r.lastEvent().Kind)
}

func TestScheduler_InPlaceBufferDiscipline(t *testing.T) {
	r := newRig(t)
	src := r.source("src", nil)
	inv := r.inplace("inv", nil)
	out := r.sink("out", testutil.FakeSpec{})
	r.root(src)
	r.connect(src, inv)
	r.connect(inv, out)

	s := r.scheduler(Options{MaxFrames: 3})
	require.NoError(t, s.Start(r.ctx, ""))
	require.NoError(t, s.Wait())

	srcIns, srcOuts := r.instance("src").Buffers()
	require.Len(t, srcOuts, 3)
	buf := srcOuts[0]
	for i := range srcOuts {
		assert.Nil(t, srcIns[i])
		assert.Same(t, buf, srcOuts[i])
	}
	for _, label := range []string{"inv", "out"} {
		ins, outs := r.instance(label).Buffers()
		require.Len(t, ins, 3)
		for i := range ins {
			assert.Same(t, buf, ins[i], label)
			assert.Same(t, buf, outs[i], label)
		}
	}
	assert.Equal(t, []uint64{1, 2, 3}, r.instance("out").Seqs())
	assert.Equal(t, smallGray, buf.Geometry)
}

func TestScheduler_DestinationBufferReuse(t *testing.T) {
	r := newRig(t)
	large := frame.Geometry{Width: 8, Height: 4, Format: port.Gray8}
	var data []*byte
	var sizes []int

	src := r.source("src", nil)
	grow := r.inplace("grow", func(_ context.Context, in, _ *frame.Frame) error {
		if in.Seq >= 3 {
			in.Ensure(large)
		}
		return nil
	})
	conv := r.fake("conv", plugin.Transform, testutil.FakeSpec{
		In: []port.Format{port.Gray8}, Out: []port.Format{port.Gray8}, Relations: grayOnly, Dest: true,
		ProcessFn: func(_ context.Context, in, out *frame.Frame) error {
			data = append(data, &out.Data[0])
			sizes = append(sizes, len(out.Data))
			copy(out.Data, in.Data)
			return nil
		},
	})
	out := r.sink("out", testutil.FakeSpec{})
	r.root(src)
	r.connect(src, grow)
	r.connect(grow, conv)
	r.connect(conv, out)

	s := r.scheduler(Options{MaxFrames: 5})
	require.NoError(t, s.Start(r.ctx, ""))
	require.NoError(t, s.Wait())

	require.Len(t, data, 5)
	assert.Equal(t, []int{8, 8, 32, 32, 32}, sizes)
	assert.Same(t, data[0], data[1])
	assert.NotSame(t, data[1], data[2])
	assert.Same(t, data[2], data[3])
	assert.Same(t, data[3], data[4])

	convIns, convOuts := r.instance("conv").Buffers()
	outIns, _ := r.instance("out").Buffers()
	for i := range convOuts {
		assert.NotSame(t, convIns[i], convOuts[i])
		assert.Same(t, convOuts[0], convOuts[i])
		assert.Same(t, convOuts[i], outIns[i])
	}
}

func TestScheduler_InitFailure(t *testing.T) {
	r := newRig(t)
	src := r.source("src", nil)
	inv := r.inplace("inv", nil)
	bad := r.sink("bad", testutil.FakeSpec{InitErr: errors.New("no device")})
	r.root(src)
	r.connect(src, inv)
	r.connect(inv, bad)

	s := r.scheduler(Options{})
	err := s.Start(r.ctx, "")
	var ie *InitializationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, bad, ie.Node)
	assert.ErrorContains(t, err, "no device")

	assert.Equal(t, StateStopped, s.State())
	assert.False(t, s.IsRunning())
	assert.Equal(t, 1, r.instance("src").Calls().Finalize)
	assert.Equal(t, 1, r.instance("inv").Calls().Finalize)
	assert.Equal(t, 0, r.instance("bad").Calls().Finalize)
	assert.Equal(t, 0, r.instance("src").Calls().Process)

	ev := r.lastEvent()
	assert.Equal(t, EventFatal, ev.Kind)
	assert.Equal(t, bad, ev.Node)
	assert.ErrorIs(t, s.Wait(), err)
}

func TestScheduler_ProcessFailureInBranchIsFatal(t *testing.T) {
	r := newRig(t)
	src := r.source("src", nil)
	main := r.sink("main", testutil.FakeSpec{})
	calls := 0
	bad := r.sink("bad", testutil.FakeSpec{ProcessFn: func(context.Context, *frame.Frame, *frame.Frame) error {
		calls++
		if calls == 3 {
			return errors.New("disk full")
		}
		return nil
	}})
	r.root(src)
	r.connect(src, main)
	r.branch(src, bad, 1)

	s := r.scheduler(Options{FramePeriod: time.Millisecond})
	require.NoError(t, s.Start(r.ctx, ""))
	err := s.Wait()

	var re *RuntimeProcessingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, bad, re.Node)
	assert.Equal(t, uint64(3), re.Frame)

	ev := r.lastEvent()
	assert.Equal(t, EventFatal, ev.Kind)
	assert.Equal(t, bad, ev.Node)
	for _, label := range []string{"src", "main", "bad"} {
		assert.Equal(t, 1, r.instance(label).Calls().Finalize, label)
	}
	assert.Equal(t, StateStopped, s.State())
}

func TestScheduler_PauseCapturesSnapshot(t *testing.T) {
	r := newRig(t)
	src := r.source("src", func(_ context.Context, _, out *frame.Frame) error {
		for i := range out.Data {
			out.Data[i] = 10
		}
		return nil
	})
	inv := r.inplace("inv", func(_ context.Context, in, _ *frame.Frame) error {
		for i := range in.Data {
			in.Data[i] = 255 - in.Data[i]
		}
		return nil
	})
	out := r.sink("out", testutil.FakeSpec{})
	r.root(src)
	r.connect(src, inv)
	r.connect(inv, out)

	s := r.scheduler(Options{FramePeriod: time.Millisecond})
	require.NoError(t, s.Start(r.ctx, ""))
	require.Eventually(t, func() bool { return s.Frames() >= 2 }, 2*time.Second, time.Millisecond)
	require.NoError(t, s.Pause())
	require.NoError(t, s.Wait())

	snap := s.Snapshot()
	assert.Equal(t, src, snap.FirstNode)
	assert.Equal(t, out, snap.LastNode)
	require.NotNil(t, snap.First)
	require.NotNil(t, snap.Last)
	assert.Equal(t, snap.First.Seq, snap.Last.Seq)
	assert.Equal(t, s.Frames(), snap.Last.Seq)
	assert.Equal(t, byte(10), snap.First.Data[0])
	assert.Equal(t, byte(245), snap.Last.Data[0])
	assert.Equal(t, EventPaused, r.lastEvent().Kind)
	assert.ErrorIs(t, s.Pause(), ErrNotRunning)
}

func TestScheduler_StartRules(t *testing.T) {
	r := newRig(t)
	s := r.scheduler(Options{})
	assert.ErrorIs(t, s.Start(r.ctx, ""), ErrNoRoot)
	assert.ErrorIs(t, s.Start(r.ctx, "ghost@v2"), ErrNoRoot)

	src := r.source("src", nil)
	out := r.sink("out", testutil.FakeSpec{})
	r.root(src)
	r.connect(src, out)

	s = r.scheduler(Options{FramePeriod: 5 * time.Millisecond})
	require.NoError(t, s.Start(r.ctx, ""))
	assert.ErrorIs(t, s.Start(r.ctx, ""), ErrRunning)
	assert.NotEmpty(t, s.RunID())
	first := s.RunID()
	s.Stop(true)

	require.NoError(t, s.Start(r.ctx, src))
	assert.NotEqual(t, first, s.RunID())
	s.Stop(true)
	assert.Equal(t, 2, r.instance("out").Calls().Init)
	assert.Equal(t, 2, r.instance("out").Calls().Finalize)
}

func TestScheduler_ContextCancelEndsRun(t *testing.T) {
	r := newRig(t)
	src := r.source("src", nil)
	out := r.sink("out", testutil.FakeSpec{})
	r.root(src)
	r.connect(src, out)

	ctx, cancel := context.WithCancel(r.ctx)
	s := r.scheduler(Options{FramePeriod: time.Millisecond})
	require.NoError(t, s.Start(ctx, ""))
	cancel()
	require.NoError(t, s.Wait())
	assert.Equal(t, 1, r.instance("out").Calls().Finalize)
}
