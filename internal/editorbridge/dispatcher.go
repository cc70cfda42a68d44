package editorbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/graph"
	"github.com/vk/framegrid/internal/port"
)

// ErrPipelineRunning rejects graph edits while frames are flowing.
var ErrPipelineRunning = errors.New("pipeline is running")

// ErrUnknownCommand is returned for a command name the dispatcher does not
// know.
var ErrUnknownCommand = errors.New("unknown command")

// Runner controls pipeline runs.
type Runner interface {
	Start(ctx context.Context) error
	Stop()
	Pause() error
	Running() bool
}

// Dispatcher executes editor commands against the graph and the runner.
// Commands run one at a time.
type Dispatcher struct {
	mu     sync.Mutex
	m      *graph.Manager
	runner Runner
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(m *graph.Manager, runner Runner) *Dispatcher {
	return &Dispatcher{m: m, runner: runner}
}

// Edits reports whether the command mutates the graph.
func Edits(name string) bool {
	switch name {
	case CmdConnect, CmdReplace, CmdDisconnectAll, CmdDisconnect, CmdClone, CmdRelease, CmdSetRoot, CmdSetCycle:
		return true
	}
	return false
}

// Handle runs one command and always returns a Result carrying cmd.ID.
func (d *Dispatcher) Handle(ctx context.Context, name string, cmd Command) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	logger := ctxlog.FromContext(ctx).With("command", name, "id", cmd.ID)
	data, err := d.handle(ctx, name, cmd)
	if err != nil {
		logger.Warn("Command failed.", "error", err)
		return Result{ID: cmd.ID, Error: err.Error()}
	}
	logger.Debug("Command done.")
	return Result{ID: cmd.ID, Ok: true, Data: data}
}

func (d *Dispatcher) handle(ctx context.Context, name string, cmd Command) (any, error) {
	if Edits(name) && d.runner.Running() {
		return nil, ErrPipelineRunning
	}
	switch name {
	case CmdConnect:
		return nil, d.m.Connect(ctx, cmd.Prev, cmd.Target, cmd.Nexts)
	case CmdReplace:
		return nil, d.m.Replace(ctx, cmd.Prev, cmd.Old, cmd.New, cmd.Nexts)
	case CmdDisconnectAll:
		return nil, d.m.DisconnectAll(ctx, cmd.Node)
	case CmdDisconnect:
		return nil, d.m.Disconnect(ctx, cmd.Node, cmd.Branch)
	case CmdClone:
		clone, err := d.m.Clone(ctx, cmd.Node)
		if err != nil {
			return nil, err
		}
		return clone, nil
	case CmdRelease:
		return nil, d.m.Release(ctx, cmd.Node)
	case CmdConnectable:
		return d.m.GetConnectableNames(cmd.Prev, cmd.Nexts...)
	case CmdSetRoot:
		return nil, d.m.SetRoot(ctx, cmd.Node)
	case CmdSetCycle:
		return nil, d.m.SetCycle(ctx, cmd.Src, cmd.Dst, cmd.Every)
	case CmdStart:
		return nil, d.runner.Start(ctx)
	case CmdStop:
		d.runner.Stop()
		return nil, nil
	case CmdPause:
		return nil, d.runner.Pause()
	case CmdPlugins:
		return d.plugins(), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
}

// Plugins describes every loaded node in load order.
func (d *Dispatcher) Plugins() []PluginInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plugins()
}

func (d *Dispatcher) plugins() []PluginInfo {
	root := d.m.Root()
	nodes := d.m.Nodes()
	out := make([]PluginInfo, 0, len(nodes))
	for _, n := range nodes {
		info := PluginInfo{
			Name:         n.Name(),
			Base:         n.Base(),
			Category:     n.Category().String(),
			Description:  n.Description(),
			Version:      n.Version(),
			Inputs:       formatNames(n.Inputs().Formats()),
			Outputs:      formatNames(n.Outputs().Formats()),
			Available:    formatNames(n.Outputs().AvailableFormats()),
			ActiveOutput: n.ActiveOutput(),
			Clone:        n.IsClone(),
			Next:         []string{},
			Root:         n == root,
		}
		if n.IsClone() {
			info.Origin = n.Origin()
		}
		if p := d.m.Prev(n); p != nil {
			info.Prev = p.Name()
		}
		for _, c := range d.m.Next(n) {
			info.Next = append(info.Next, c.Name())
		}
		out = append(out, info)
	}
	return out
}

func formatNames(formats []port.Format) []string {
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		out = append(out, f.String())
	}
	return out
}
