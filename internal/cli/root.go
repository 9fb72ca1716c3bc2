package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdxmph/todo-tui/internal/config"
	"github.com/pdxmph/todo-tui/internal/tasks"
	"github.com/pdxmph/todo-tui/internal/tui"

	_ "github.com/pdxmph/todo-tui/internal/tasks/firestore"
	_ "github.com/pdxmph/todo-tui/internal/tasks/memory"
	_ "github.com/pdxmph/todo-tui/internal/tasks/sqlite"
)

var runTUI = func(ctx context.Context, store tasks.Store) error {
	return tui.Run(ctx, store)
}

// options are the global flags and the config they resolve to
type options struct {
	configPath string
	backend    string
	cfg        *config.Config
}

func (o *options) load() error {
	var cfg *config.Config
	var err error
	if o.configPath == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFrom(o.configPath)
	}
	if err != nil {
		return err
	}
	if o.backend != "" {
		cfg.Store.Backend = o.backend
	}
	o.cfg = cfg
	return nil
}

func (o *options) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.Path()
}

// openStore opens the configured backend
func (o *options) openStore() (*tasks.Manager, error) {
	m, err := tasks.NewManager(o.cfg)
	if err != nil {
		return nil, err
	}
	slog.Debug("store opened", "backend", m.Name())
	return m, nil
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRoot().ExecuteContext(ctx)
}

func NewRoot() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "todo",
		Short: "A to-do list kept in sync with a document store",
		Long: `todo keeps a single task list in a local SQLite file or a Cloud Firestore
collection. Run without arguments to open the interactive list.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logToStderr(cmd.ErrOrStderr())
			return opts.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default "+config.Path()+")")
	root.PersistentFlags().StringVar(&opts.backend, "store", "", "store backend, overrides store.backend")

	root.AddCommand(
		tuiCmd(opts),
		initCmd(opts),
		addCmd(opts),
		editCmd(opts),
		listCmd(opts),
		toggleCmd(opts),
		rmCmd(opts),
		loginCmd(opts),
		backendsCmd(opts),
	)
	return root
}

func tuiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive task list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, opts)
		},
	}
}

func runInteractive(cmd *cobra.Command, opts *options) error {
	closeLog, err := logToFile(opts.cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	m, err := opts.openStore()
	if err != nil {
		return err
	}
	defer m.Close()

	slog.Info("starting", "backend", m.Name())
	return runTUI(cmd.Context(), m.Store())
}

func backendsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the available store backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range tasks.ListBackends() {
				marker := " "
				if name == opts.cfg.Store.Backend {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
}
