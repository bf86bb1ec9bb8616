package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/evanschultz/atlascope/internal/adapters/articles"
	serveradapter "github.com/evanschultz/atlascope/internal/adapters/server"
	"github.com/evanschultz/atlascope/internal/adapters/storage/sqlite"
	"github.com/evanschultz/atlascope/internal/app"
	"github.com/evanschultz/atlascope/internal/config"
	"github.com/evanschultz/atlascope/internal/domain"
	"github.com/evanschultz/atlascope/internal/platform"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds persistent flag values shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// run builds the command tree and executes it with args.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	env, err := config.ParseEnv()
	if err != nil {
		return err
	}
	opts := &rootOptions{appName: platform.DefaultAppName}
	if env.AppName != "" {
		opts.appName = env.AppName
	}
	defaultDevMode := version == "dev"
	if env.DevMode != nil {
		defaultDevMode = *env.DevMode
	}

	root := newRootCommand(opts, env, stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	root.PersistentFlags().StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	root.PersistentFlags().BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	root.AddCommand(
		newPathsCommand(opts, stdout),
		newServeCommand(opts, env, stderr),
		newExportCommand(opts, env, stdout, stderr),
		newImportCommand(opts, env, stderr),
		newHistoryCommand(opts, env, stdout, stderr),
		newReplayCommand(opts, env, stdout, stderr),
		newUpdateCommand(opts, env, stdout, stderr),
	)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// newRootCommand opens the terminal editor on one scope document.
func newRootCommand(opts *rootOptions, env config.EnvOverrides, stderr io.Writer) *cobra.Command {
	var docID string
	cmd := &cobra.Command{
		Use:   "atlascope",
		Short: "Edit Sky Atlas scope documents through an operation log",
		RunE: func(*cobra.Command, []string) error {
			rt, err := openRuntime(opts, env, stderr, "tui")
			if err != nil {
				return err
			}
			defer rt.Close()

			m := newEditorModel(rt.svc, docID, rt.cfg.UI)
			rt.logger.Info("starting tui program loop", "doc", docID)
			if _, err := programFactory(m).Run(); err != nil {
				rt.logger.Error("tui program terminated with error", "err", err)
				return fmt.Errorf("run tui program: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "tui")
			return nil
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "scope document id to open (default: first stored scope)")
	return cmd
}

// newPathsCommand prints the resolved on-disk locations.
func newPathsCommand(opts *rootOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(stdout, "snapshots: %s\n", paths.SnapshotDir)
			return nil
		},
	}
}

// runtime bundles the opened service and the resources closed after one command.
type runtime struct {
	cfg        config.Config
	defaults   config.Config
	env        config.EnvOverrides
	configPath string
	logger     *runtimeLogger
	repo       *sqlite.Repository
	svc        *app.Service
}

// Close releases the repository and the dev log sink.
func (r *runtime) Close() {
	if r.repo != nil {
		if err := r.repo.Close(); err != nil {
			r.logger.Warn("sqlite close failed", "db_path", r.cfg.Database.Path, "err", err)
		}
	}
	_ = r.logger.Close()
}

// openRuntime resolves paths and config, then wires storage, the article client, and the service.
func openRuntime(opts *rootOptions, env config.EnvOverrides, stderr io.Writer, command string) (*runtime, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		configPath = env.ConfigPath
	}
	if configPath == "" {
		configPath = paths.ConfigPath
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		dbPath = paths.DBPath
	}

	defaults := config.Default(dbPath)
	cfg, err := config.Load(configPath, defaults)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	cfg = env.Apply(cfg)
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %q: %w", configPath, err)
	}

	logger, err := newRuntimeLogger(stderr, loggerOptions{
		appName:  opts.appName,
		devMode:  opts.devMode,
		logging:  cfg.Logging,
		storeDir: filepath.Dir(cfg.Database.Path),
		now:      time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// runtime logs stay in the dev-file sink while the editor owns the terminal
		logger.SetConsoleEnabled(false)
	}
	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	mode, err := domain.ParseValidationMode(cfg.Validation.Mode)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	timeout, err := cfg.ArticleTimeout()
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}

	client := articles.NewClient(articles.Config{BaseURL: cfg.Articles.BaseURL, Timeout: timeout}, nil, logger.Component("articles"))
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		ValidationMode: mode,
		Articles:       client,
	})
	logger.Debug("application service initialized", "validation_mode", mode)

	return &runtime{
		cfg:        cfg,
		defaults:   defaults,
		env:        env,
		configPath: configPath,
		logger:     logger,
		repo:       repo,
		svc:        svc,
	}, nil
}
