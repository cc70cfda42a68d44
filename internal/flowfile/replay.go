package flowfile

import (
	"context"
	"fmt"

	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/graph"
	"github.com/vk/framegrid/internal/nodeid"
	"github.com/vk/framegrid/internal/port"
)

// Replay rebuilds f in m, whose plugins must already be loaded. Clones are
// recreated from their origins and may come back under a different clone
// index; the returned map translates saved names into live ones.
func Replay(ctx context.Context, m *graph.Manager, f *Flow) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)
	r := &replayer{ctx: ctx, m: m, names: map[string]string{}}

	root, err := r.resolve(f.Main.Root, f.Main.RootClone)
	if err != nil {
		return nil, err
	}
	if err := m.SetRoot(ctx, root); err != nil {
		return nil, fmt.Errorf("replaying root: %w", err)
	}
	if err := r.links(f.Main.Links); err != nil {
		return nil, fmt.Errorf("replaying main flow: %w", err)
	}
	for i, sub := range f.Sub {
		if err := r.links(sub.Links); err != nil {
			return nil, fmt.Errorf("replaying sub flow %d: %w", i, err)
		}
	}
	for _, s := range f.Settings {
		name, err := r.resolve(s.Name, s.Clone)
		if err != nil {
			return nil, err
		}
		if len(s.Lines) > 0 {
			if err := m.ImportSettings(ctx, name, s.Lines); err != nil {
				return nil, err
			}
		}
		if s.ActiveOutput != "" {
			n, _ := m.Node(name)
			idx := n.Outputs().IndexOf(port.Format(s.ActiveOutput))
			if idx < 0 {
				return nil, fmt.Errorf("replaying settings of %s: no output %q", name, s.ActiveOutput)
			}
			if err := m.SetActiveOutput(ctx, name, idx); err != nil {
				return nil, err
			}
		}
	}
	for _, c := range f.Cycles {
		src, ok := r.names[c.Src]
		if !ok {
			return nil, fmt.Errorf("replaying cycle %s->%s: %w", c.Src, c.Dst, graph.ErrUnknownNode)
		}
		dst, ok := r.names[c.Dst]
		if !ok {
			return nil, fmt.Errorf("replaying cycle %s->%s: %w", c.Src, c.Dst, graph.ErrUnknownNode)
		}
		if err := m.SetCycle(ctx, src, dst, c.Every); err != nil {
			return nil, fmt.Errorf("replaying cycle: %w", err)
		}
	}
	logger.Info("Flow replayed.", "root", root, "nodes", len(r.names), "branches", len(f.Sub))
	return r.names, nil
}

type replayer struct {
	ctx   context.Context
	m     *graph.Manager
	names map[string]string
}

func (r *replayer) links(links []Link) error {
	for _, l := range links {
		from, err := r.resolve(l.Node, l.Clone)
		if err != nil {
			return err
		}
		to, err := r.resolve(l.Next, l.NextClone)
		if err != nil {
			return err
		}
		if err := r.m.Connect(r.ctx, from, to, nil); err != nil {
			return err
		}
	}
	return nil
}

// resolve maps a saved name to a live node, cloning the origin the first
// time a saved clone is seen.
func (r *replayer) resolve(saved string, clone bool) (string, error) {
	if live, ok := r.names[saved]; ok {
		return live, nil
	}
	if !clone {
		if _, ok := r.m.Node(saved); !ok {
			return "", fmt.Errorf("replaying %s: %w", saved, graph.ErrUnknownNode)
		}
		r.names[saved] = saved
		return saved, nil
	}
	origin := nodeid.OriginOf(saved)
	if _, ok := r.m.Node(origin); !ok {
		return "", fmt.Errorf("replaying clone %s: origin %s: %w", saved, origin, graph.ErrUnknownNode)
	}
	live, err := r.m.Clone(r.ctx, origin)
	if err != nil {
		return "", fmt.Errorf("replaying clone %s: %w", saved, err)
	}
	r.names[saved] = live
	return live, nil
}
