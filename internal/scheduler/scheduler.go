package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Scheduler runs the graph frame by frame. One Scheduler drives at most
// one run at a time; it can be started again once the previous run has
// stopped.
type Scheduler struct {
	g    Graph
	opts Options

	state    atomic.Int32
	frames   atomic.Uint64
	pauseReq atomic.Bool

	mu    sync.Mutex
	runID string
	main  *chain
	done  chan struct{}
	err   error
	snap  Snapshot
}

// New creates a scheduler over g.
func New(g Graph, opts Options) (*Scheduler, error) {
	if opts.Instruments == nil {
		ins, err := telemetry.New(nil, nil)
		if err != nil {
			return nil, err
		}
		opts.Instruments = ins
	}
	done := make(chan struct{})
	close(done)
	return &Scheduler{g: g, opts: opts, done: done}, nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// IsRunning reports whether a run is in progress, including one that is
// stopping or pausing.
func (s *Scheduler) IsRunning() bool {
	switch s.State() {
	case StateRunning, StateStopping, StatePausing:
		return true
	}
	return false
}

// RunID returns the id of the current or last run.
func (s *Scheduler) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Frames returns the number of main-chain frames completed by the current
// or last run.
func (s *Scheduler) Frames() uint64 { return s.frames.Load() }

// Start checks the graph below root, builds the task tree, initializes
// every node and starts the run. An empty root starts from the graph's
// current root. Start returns once the run is underway; use Wait to block
// until it ends.
func (s *Scheduler) Start(ctx context.Context, root string) error {
	s.mu.Lock()
	runID, err := s.prepare(ctx, root)
	if err != nil {
		s.mu.Unlock()
		var ie *InitializationError
		if errors.As(err, &ie) {
			s.emit(Event{Kind: EventFatal, RunID: runID, Node: ie.Node, Err: err})
		}
		return err
	}
	ctx = ctxlog.With(ctx, "run_id", runID)
	runCtx, span := s.opts.Instruments.StartRun(ctx, runID, s.main.name)
	main, done := s.main, make(chan struct{})
	s.done = done
	s.state.Store(int32(StateRunning))
	s.mu.Unlock()

	ctxlog.FromContext(ctx).Info("▶️ Pipeline started.", "root", main.name, "chains", main.size())
	s.emit(Event{Kind: EventStarted, RunID: runID})
	go s.run(runCtx, span, main, done)
	return nil
}

// prepare builds and initializes the task tree. s.mu is held.
func (s *Scheduler) prepare(ctx context.Context, root string) (string, error) {
	if s.IsRunning() {
		return "", ErrRunning
	}
	start := s.g.Root()
	if root != "" {
		n, ok := s.g.Node(root)
		if !ok {
			return "", ErrNoRoot
		}
		start = n
	}
	if start == nil {
		return "", ErrNoRoot
	}
	if err := s.g.CheckExecutable(ctx, start.Name()); err != nil {
		return "", err
	}

	s.runID = uuid.NewString()
	ctx = ctxlog.With(ctx, "run_id", s.runID)
	s.frames.Store(0)
	s.pauseReq.Store(false)
	s.err = nil
	s.main = s.buildChain(start, nil)
	s.snap = Snapshot{FirstNode: s.opts.FirstNode, LastNode: s.opts.LastNode}
	if s.snap.FirstNode == "" {
		s.snap.FirstNode = start.Name()
	}
	if s.snap.LastNode == "" {
		s.snap.LastNode = s.main.nodes[len(s.main.nodes)-1].Name()
	}
	s.state.Store(int32(StateInit))

	if err := s.main.initTree(ctx); err != nil {
		s.main.finalizeTree(context.WithoutCancel(ctx))
		s.err = err
		s.state.Store(int32(StateStopped))
		s.opts.Instruments.Failure(ctx, failedNode(err))
		return s.runID, err
	}
	return s.runID, nil
}

func (s *Scheduler) run(ctx context.Context, span trace.Span, main *chain, done chan struct{}) {
	defer close(done)
	err := main.run(ctx)

	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	err = s.err
	runID := s.runID
	s.mu.Unlock()
	paused := s.State() == StatePausing

	s.opts.Instruments.EndRun(ctx, span, err)
	s.state.Store(int32(StateStopped))
	logger := ctxlog.FromContext(ctx)

	ev := Event{RunID: runID, Err: err, Frames: s.frames.Load()}
	switch {
	case err != nil:
		ev.Kind = EventFatal
		ev.Node = failedNode(err)
		logger.Error("⏹️ Pipeline stopped on failure.", "node", ev.Node, "frames", ev.Frames, "error", err)
	case paused:
		ev.Kind = EventPaused
		logger.Info("⏸️ Pipeline paused.", "frames", ev.Frames)
	default:
		ev.Kind = EventStopped
		logger.Info("⏹️ Pipeline stopped.", "frames", ev.Frames)
	}
	s.emit(ev)
}

// fail records the first fatal error of a run and stops every chain.
func (s *Scheduler) fail(ctx context.Context, err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	main := s.main
	s.mu.Unlock()
	s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
	ctxlog.FromContext(ctx).Debug("Stopping all chains after failure.", "error", err)
	main.closeTree()
}

// Stop ends the run. Stop channels close depth first, which releases every
// branch blocked on its inbox. With wait set, Stop returns once every node
// has been finalized.
func (s *Scheduler) Stop(wait bool) {
	s.mu.Lock()
	main, done := s.main, s.done
	s.mu.Unlock()
	s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
	if main != nil {
		main.closeTree()
	}
	if wait {
		<-done
	}
}

// Pause asks the run to capture the snapshot frames during the next frame
// and to halt after it.
func (s *Scheduler) Pause() error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StatePausing)) {
		return ErrNotRunning
	}
	s.pauseReq.Store(true)
	return nil
}

// Wait blocks until the current run ends and returns its error.
func (s *Scheduler) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	<-done
	return s.Err()
}

// Err returns the fatal error of the current or last run.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot returns the frames captured by the last pause. Frames not
// captured are nil.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Scheduler) capture(node string, f *frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node == s.snap.FirstNode {
		s.snap.First = f.Clone()
	}
	if node == s.snap.LastNode {
		s.snap.Last = f.Clone()
	}
}

// Stats reports frame counts, branch traffic and node timings of the
// current or last run.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	main := s.main
	s.mu.Unlock()
	st := Stats{Frames: s.frames.Load(), Nodes: make(map[string]time.Duration)}
	if main == nil {
		return st
	}
	main.walk(func(c *chain) {
		for _, n := range c.nodes {
			st.Nodes[n.Name()] = n.AverageDuration()
		}
		for _, b := range c.children {
			st.Branches = append(st.Branches, BranchStats{
				Src:      b.src,
				Dst:      b.dst,
				Every:    b.every,
				Released: b.box.released.Load(),
				Woken:    b.box.woken.Load(),
			})
		}
	})
	return st
}

func (s *Scheduler) emit(ev Event) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(ev)
	}
}
