package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vk/framegrid/internal/cadence"
	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/graph"
	"github.com/vk/framegrid/internal/plugin"
	"golang.org/x/sync/errgroup"
)

// errInterrupted ends a chain whose node gave up on a cancelled context.
var errInterrupted = errors.New("frame interrupted")

// chain is a run of nodes linked by primary edges, executed on one
// goroutine. The main chain has no inbox.
type chain struct {
	s     *Scheduler
	name  string
	nodes []*graph.Node
	// bufs holds one buffer per node: the destination buffer of
	// destination nodes, the capture buffer of an in-place source.
	bufs []*frame.Frame
	// branches lists, per node index, the branches leaving that node.
	branches [][]*branch
	children []*branch

	in    *inbox
	work  frame.Frame
	count uint64

	stop     chan struct{}
	stopOnce sync.Once

	// initialized counts the leading nodes whose Init succeeded.
	initialized int
}

// branch is one branch edge and the chain it feeds.
type branch struct {
	src   string
	dst   string
	every int
	box   *inbox
	chain *chain
}

// fires reports whether the branch receives frame seq of its parent. every
// is read from the cadence table when the run starts.
func (b *branch) fires(seq uint64) bool {
	return cadence.Due(b.every, seq)
}

func (s *Scheduler) buildChain(start *graph.Node, in *inbox) *chain {
	c := &chain{
		s:     s,
		name:  start.Name(),
		nodes: s.g.MainChain(start),
		in:    in,
		stop:  make(chan struct{}),
	}
	c.bufs = make([]*frame.Frame, len(c.nodes))
	c.branches = make([][]*branch, len(c.nodes))
	table := s.g.Cadence()
	for i, n := range c.nodes {
		c.bufs[i] = &frame.Frame{}
		_, targets := s.g.Split(n)
		for _, t := range targets {
			every := table.Get(n.Name(), t.Name())
			if every < 1 {
				every = 1
			}
			box := newInbox()
			b := &branch{src: n.Name(), dst: t.Name(), every: every, box: box}
			b.chain = s.buildChain(t, box)
			c.branches[i] = append(c.branches[i], b)
			c.children = append(c.children, b)
		}
	}
	return c
}

// walk visits c and every chain below it, parents first.
func (c *chain) walk(fn func(*chain)) {
	fn(c)
	for _, b := range c.children {
		b.chain.walk(fn)
	}
}

// closeTree closes the stop channels below c depth first, then c's own.
func (c *chain) closeTree() {
	for _, b := range c.children {
		b.chain.closeTree()
	}
	c.stopOnce.Do(func() { close(c.stop) })
}

// initTree initializes the chains below and including c, chain by chain.
func (c *chain) initTree(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for _, n := range c.nodes {
		pc := &plugin.Context{
			Name:     n.Name(),
			Logger:   logger.With("node", n.Name()),
			Geometry: c.s.opts.Geometry,
		}
		if err := n.Plugin().Init(ctx, pc); err != nil {
			logger.Error("Node failed to initialize.", "node", n.Name(), "error", err)
			return &InitializationError{Node: n.Name(), Err: err}
		}
		c.initialized++
		logger.Debug("Node initialized.", "node", n.Name())
	}
	for _, b := range c.children {
		if err := b.chain.initTree(ctx); err != nil {
			return err
		}
	}
	return nil
}

// finalizeTree finalizes every initialized node below and including c,
// children first.
func (c *chain) finalizeTree(ctx context.Context) {
	for _, b := range c.children {
		b.chain.finalizeTree(ctx)
	}
	c.finalize(ctx)
}

func (c *chain) finalize(ctx context.Context) {
	for i := c.initialized - 1; i >= 0; i-- {
		c.nodes[i].Plugin().Finalize(ctx)
	}
	c.initialized = 0
}

// run drives c until it is stopped or fails, then joins its children and
// finalizes its own nodes.
func (c *chain) run(ctx context.Context) error {
	var g errgroup.Group
	for _, b := range c.children {
		child := b.chain
		g.Go(func() error { return child.run(ctx) })
	}

	var err error
	if c.in == nil {
		err = c.loopMain(ctx)
	} else {
		err = c.loopBranch(ctx)
	}
	if errors.Is(err, errInterrupted) {
		err = nil
	}
	if err != nil {
		c.s.fail(ctx, err)
	}

	for _, b := range c.children {
		b.chain.closeTree()
	}
	childErr := g.Wait()
	c.finalize(context.WithoutCancel(ctx))
	ctxlog.FromContext(ctx).Debug("Chain finished.", "chain", c.name, "frames", c.count)
	if err != nil {
		return err
	}
	return childErr
}

func (c *chain) loopMain(ctx context.Context) error {
	var tick <-chan time.Time
	if p := c.s.opts.FramePeriod; p > 0 {
		t := time.NewTicker(p)
		defer t.Stop()
		tick = t.C
	}
	limit := c.s.opts.MaxFrames
	for {
		select {
		case <-c.stop:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}
		if tick != nil {
			select {
			case <-tick:
			case <-c.stop:
				return nil
			case <-ctx.Done():
				return nil
			}
		}

		capture := c.s.pauseReq.Load()
		if err := c.frame(ctx, capture); err != nil {
			return err
		}
		c.s.frames.Store(c.count)
		if capture {
			ctxlog.FromContext(ctx).Info("Pipeline paused.", "frame", c.count)
			return nil
		}
		if limit > 0 && c.count >= limit {
			ctxlog.FromContext(ctx).Info("Frame limit reached.", "frames", c.count)
			return nil
		}
	}
}

func (c *chain) loopBranch(ctx context.Context) error {
	for {
		select {
		case <-c.in.wake:
			if !c.in.take(&c.work) {
				continue
			}
			c.in.woken.Add(1)
			if err := c.frame(ctx, c.s.pauseReq.Load()); err != nil {
				return err
			}
		case <-c.stop:
			// A frame already handed over still completes, so a pause
			// capture sees it and no released frame is dropped.
			if c.in.take(&c.work) {
				c.in.woken.Add(1)
				return c.frame(ctx, c.s.State() == StatePausing)
			}
			return nil
		}
	}
}

// frame runs every node of c once.
func (c *chain) frame(ctx context.Context, capture bool) error {
	c.count++
	seq := c.count
	logger := ctxlog.FromContext(ctx)
	ins := c.s.opts.Instruments

	var cur *frame.Frame
	if c.in != nil {
		cur = &c.work
	}
	for i, n := range c.nodes {
		p := n.Plugin()
		var (
			out *frame.Frame
			err error
		)
		start := time.Now()
		switch {
		case n.UsesDestinationBuffer() && len(n.Outputs()) > 0:
			geo := c.s.opts.Geometry
			if !cur.Empty() {
				geo = cur.Geometry
			}
			out = c.bufs[i]
			if out.Ensure(plugin.OutputGeometry(p, geo, n.ActiveFormat())) {
				logger.Debug("Destination buffer allocated.", "node", n.Name(), "geometry", out.Geometry.String())
			}
			err = p.Process(ctx, cur, out)
			out.Seq = seq
		case cur == nil:
			// In-place source: it fills its own buffer, which then becomes
			// the chain's working frame.
			own := c.bufs[i]
			err = p.Process(ctx, own, own)
			if err == nil {
				c.work.CopyFrom(own)
				c.work.Seq = seq
			}
			out = &c.work
		default:
			err = p.Process(ctx, cur, cur)
			out = cur
		}
		elapsed := time.Since(start)
		n.ObserveDuration(elapsed)
		ins.NodeDuration(ctx, n.Name(), elapsed)

		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			logger.Debug("Frame interrupted by cancellation.", "node", n.Name(), "frame", seq)
			c.count--
			return errInterrupted
		}
		if err != nil {
			logger.Error("Node failed to process frame.", "node", n.Name(), "frame", seq, "error", err)
			ins.Failure(ctx, n.Name())
			return &RuntimeProcessingError{Node: n.Name(), Frame: seq, Err: err}
		}
		if capture {
			c.s.capture(n.Name(), out)
		}
		for _, b := range c.branches[i] {
			if b.fires(seq) {
				b.box.put(out)
				ins.Release(ctx, b.src, b.dst)
			}
		}
		cur = out
	}

	for _, n := range c.nodes {
		n.Plugin().PostProcess(ctx)
	}
	ins.Frame(ctx, c.name)
	return nil
}

// size counts the chains below and including c.
func (c *chain) size() int {
	n := 0
	c.walk(func(*chain) { n++ })
	return n
}
