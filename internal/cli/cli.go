package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vk/framegrid/internal/app"
	"github.com/vk/framegrid/internal/editorbridge"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables bound to flags, e.g.
// FRAMEGRID_LOG_LEVEL for --log-level.
const EnvPrefix = "FRAMEGRID"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

// Execute runs the command line in args. Results go to outW; the listing
// commands log to errW so their output stays machine readable. Usage and
// configuration problems come back as an *ExitError with code 2.
func Execute(ctx context.Context, outW, errW io.Writer, args []string) error {
	root := NewRootCommand(outW, errW)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) && strings.HasPrefix(err.Error(), "unknown command") {
		return usageError(err)
	}
	return err
}

// NewRootCommand builds the framegrid command tree. Every call gets its own
// viper instance.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "framegrid",
		Short:         "framegrid - a plugin-based image processing pipeline host.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			slog.Debug("CLI parser started.", "command", cmd.Name())
			return v.BindPFlags(cmd.Flags())
		},
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringP("plugins", "p", "plugins", "Directory holding the source/, transform/ and sink/ manifest directories.")
	pf.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.Int("min-version", 0, "Oldest plugin interface version to accept. 0 is 1.")
	pf.Int("max-version", 0, "Newest plugin interface version to accept. 0 is the current one.")

	root.AddCommand(
		newRunCommand(v),
		newCheckCommand(v),
		newPluginsCommand(v),
		newFlowCommand(v),
	)
	return root
}

// flowArg lets the flow file come from --flow or from the first argument.
func flowArg(v *viper.Viper, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return v.GetString("flow")
}

func addFlowFlag(fs *pflag.FlagSet) {
	fs.StringP("flow", "f", "", "Path to the TOML flow file.")
}

// newConfig assembles and validates the app configuration from flags and
// environment.
func newConfig(v *viper.Viper, flowPath string) (*app.Config, error) {
	cfg, err := app.NewConfig(app.Config{
		PluginsPath:     v.GetString("plugins"),
		FlowPath:        flowPath,
		LogFormat:       strings.ToLower(v.GetString("log-format")),
		LogLevel:        strings.ToLower(v.GetString("log-level")),
		HealthcheckPort: v.GetInt("healthcheck-port"),
		FramePeriod:     v.GetDuration("frame-period"),
		MaxFrames:       v.GetUint64("max-frames"),
		FrameWidth:      v.GetInt("width"),
		FrameHeight:     v.GetInt("height"),
		MinVersion:      v.GetInt("min-version"),
		MaxVersion:      v.GetInt("max-version"),
		FirstNode:       v.GetString("first-node"),
		LastNode:        v.GetString("last-node"),
		SnapshotPath:    v.GetString("snapshot"),
		EditorURL:       v.GetString("editor-url"),
		EditorNamespace: v.GetString("editor-namespace"),
		EditorInsecure:  v.GetBool("editor-insecure"),
		Watch:           v.GetBool("watch"),
	})
	if err != nil {
		return nil, usageError(err)
	}
	slog.Debug("CLI parameter validation complete.", "config", cfg)
	return cfg, nil
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [FLOW]",
		Short: "Run a pipeline from a flow file, or under the control of an editor.",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := newConfig(v, flowArg(v, args))
			if err != nil {
				return err
			}
			if cfg.FlowPath == "" && cfg.EditorURL == "" {
				return usageError(errors.New("nothing to run: give a flow file or --editor-url"))
			}
			a := app.NewApp(cmd.OutOrStdout(), cfg)
			return a.Run(cmd.Context())
		},
	}
	fs := cmd.Flags()
	addFlowFlag(fs)
	fs.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	fs.Duration("frame-period", 0, "Time between main-chain frames. 0 runs frames back to back.")
	fs.Uint64("max-frames", 0, "Stop after this many main-chain frames. 0 runs until interrupted.")
	fs.Int("width", app.DefaultFrameWidth, "Nominal frame width handed to sources.")
	fs.Int("height", app.DefaultFrameHeight, "Nominal frame height handed to sources.")
	fs.String("first-node", "", "Node whose output a pause captures first. Defaults to the root.")
	fs.String("last-node", "", "Node whose output a pause captures last. Defaults to the end of the main chain.")
	fs.String("snapshot", "", "Where to write the msgpack snapshot after a pause.")
	fs.String("editor-url", "", "socket.io URL of the editor. Empty runs headless.")
	fs.String("editor-namespace", "/", "socket.io namespace of the editor.")
	fs.Bool("editor-insecure", false, "Skip TLS certificate verification for the editor.")
	fs.Bool("watch", false, "Reload the pipeline when the flow file changes.")
	return cmd
}

func newCheckCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [FLOW]",
		Short: "Load the plugins and the flow file and verify the pipeline can run.",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := newConfig(v, flowArg(v, args))
			if err != nil {
				return err
			}
			if cfg.FlowPath == "" {
				return usageError(errors.New("check needs a flow file"))
			}
			a := app.NewApp(cmd.ErrOrStderr(), cfg)
			if err := a.Load(cmd.Context()); err != nil {
				return err
			}
			for _, w := range a.Report().Warnings() {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %v\n", w)
			}
			if err := a.Check(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d nodes)\n", cfg.FlowPath, len(a.Graph().Nodes()))
			return nil
		},
	}
	addFlowFlag(cmd.Flags())
	return cmd
}

func newPluginsCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins [FLOW]",
		Short: "List the plugins discovered in the plugins directory.",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := v.GetString("output")
			if output != "table" && output != "yaml" {
				return usageError(fmt.Errorf("invalid output %q: must be 'table' or 'yaml'", output))
			}
			cfg, err := newConfig(v, flowArg(v, args))
			if err != nil {
				return err
			}
			a := app.NewApp(cmd.ErrOrStderr(), cfg)
			if err := a.Load(cmd.Context()); err != nil {
				return err
			}
			infos, err := a.Plugins()
			if err != nil {
				return err
			}
			if output == "yaml" {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(infos); err != nil {
					return err
				}
				return enc.Close()
			}
			renderPlugins(cmd.OutOrStdout(), infos)
			return nil
		},
	}
	addFlowFlag(cmd.Flags())
	cmd.Flags().StringP("output", "o", "table", "Output format. Options: 'table' or 'yaml'.")
	return cmd
}

func renderPlugins(w io.Writer, infos []editorbridge.PluginInfo) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"name", "category", "version", "inputs", "outputs", "active", "next"})
	table.SetAutoWrapText(false)
	for _, p := range infos {
		active := ""
		if p.ActiveOutput >= 0 && p.ActiveOutput < len(p.Outputs) {
			active = p.Outputs[p.ActiveOutput]
		}
		name := p.Name
		if p.Root {
			name += " (root)"
		}
		table.Append([]string{
			name,
			p.Category,
			strconv.Itoa(p.Version),
			strings.Join(p.Inputs, ","),
			strings.Join(p.Outputs, ","),
			active,
			strings.Join(p.Next, ","),
		})
	}
	table.Render()
}

func newFlowCommand(v *viper.Viper) *cobra.Command {
	flow := &cobra.Command{
		Use:   "flow",
		Short: "Flow file operations.",
	}
	save := &cobra.Command{
		Use:   "save OUTPUT",
		Short: "Write a flow file, either rebuilt from --flow or a new chain from --chain.",
		Long: `save replays --flow into freshly loaded plugins and writes the result to
OUTPUT, which renumbers clones and drops anything that no longer loads.
With --chain it instead writes a new main chain through the named nodes,
the first of which becomes the root.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain := v.GetStringSlice("chain")
			flowPath := v.GetString("flow")
			if (len(chain) == 0) == (flowPath == "") {
				return usageError(errors.New("give exactly one of --flow and --chain"))
			}
			cfg, err := newConfig(v, flowPath)
			if err != nil {
				return err
			}
			a := app.NewApp(cmd.ErrOrStderr(), cfg)
			ctx := cmd.Context()
			if err := a.Load(ctx); err != nil {
				return err
			}
			if len(chain) > 0 {
				if err := buildChain(ctx, a, chain); err != nil {
					return err
				}
			}
			if err := a.SaveFlow(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
	addFlowFlag(save.Flags())
	save.Flags().StringSlice("chain", nil, "Node names to chain, root first.")
	flow.AddCommand(save)
	return flow
}

func buildChain(ctx context.Context, a *app.App, chain []string) error {
	m := a.Graph()
	if err := m.SetRoot(ctx, chain[0]); err != nil {
		return err
	}
	for i := 1; i < len(chain); i++ {
		if err := m.Connect(ctx, chain[i-1], chain[i], nil); err != nil {
			return err
		}
	}
	return m.CheckExecutable(ctx, "")
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
