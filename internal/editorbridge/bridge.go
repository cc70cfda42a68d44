package editorbridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/scheduler"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Event names pushed to the editor.
const (
	EventResult  = "result"
	EventPlugins = "plugins"
	EventState   = "state"
)

// Options configure the socket.io connection.
type Options struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	// ConnectTimeout bounds Dial. Zero means 15 seconds.
	ConnectTimeout time.Duration
}

// Bridge is a live socket.io connection to the editor.
type Bridge struct {
	io     *socket.Socket
	d      *Dispatcher
	logger *slog.Logger
}

// Dial connects to the editor and starts serving commands through d.
func Dial(ctx context.Context, opts Options, d *Dispatcher) (*Bridge, error) {
	logger := ctxlog.FromContext(ctx).With("component", "editorbridge", "url", opts.URL)
	logger.Info("Connecting to editor...")

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("editor URL %q needs a scheme and a host", opts.URL)
	}

	so := socket.DefaultOptions()
	if parsedURL.Path != "" {
		so.SetPath(parsedURL.Path)
	}
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		so.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	so.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, so)
	io := manager.Socket(opts.Namespace, so)
	b := &Bridge{io: io, d: d, logger: logger}

	// Commands outlive Dial's context.
	cmdCtx := ctxlog.WithLogger(context.WithoutCancel(ctx), logger)
	for _, name := range Commands {
		io.On(types.EventName(name), func(args ...any) {
			b.serve(cmdCtx, name, args)
		})
	}

	connectChan := make(chan error, 1)
	io.On(types.EventName("connect"), func(...any) {
		logger.Info("Connected to editor.", "sid", io.Id())
		b.PushPlugins()
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		logger.Debug("Connection attempt failed.", "error", err)
		select {
		case connectChan <- err:
		default:
		}
	})

	io.Connect()

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return b, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for editor connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for editor connection", timeout)
	}
}

func (b *Bridge) serve(ctx context.Context, name string, args []any) {
	var payload any
	if len(args) > 0 {
		payload = args[0]
	}
	cmd, err := DecodeCommand(payload)
	var res Result
	if err != nil {
		res = Result{ID: cmd.ID, Error: err.Error()}
	} else {
		res = b.d.Handle(ctx, name, cmd)
	}
	b.io.Emit(EventResult, res)
	if res.Ok && Edits(name) {
		b.PushPlugins()
	}
}

// PushPlugins sends the current plugin list.
func (b *Bridge) PushPlugins() {
	b.io.Emit(EventPlugins, b.d.Plugins())
}

// NotifyState forwards a scheduler event. It has the shape of
// scheduler.Options.OnEvent.
func (b *Bridge) NotifyState(ev scheduler.Event) {
	b.io.Emit(EventState, NoticeFor(ev))
}

// Close disconnects from the editor.
func (b *Bridge) Close() {
	b.logger.Info("Disconnecting from editor.", "sid", b.io.Id())
	b.io.Disconnect()
}

// NoticeFor converts a scheduler event into the notice sent to the editor.
func NoticeFor(ev scheduler.Event) StateNotice {
	n := StateNotice{State: ev.Kind.String(), RunID: ev.RunID, Node: ev.Node, Frames: ev.Frames}
	if ev.Err != nil {
		n.Error = ev.Err.Error()
	}
	return n
}
