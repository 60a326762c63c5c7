package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atinylittleshell/commitreview/internal/appupdate"
	"github.com/atinylittleshell/commitreview/internal/config"
	"github.com/atinylittleshell/commitreview/internal/core"
	"github.com/atinylittleshell/commitreview/internal/filesystem"
	"github.com/atinylittleshell/commitreview/internal/gitrepo"
	"github.com/atinylittleshell/commitreview/internal/review"
	"github.com/atinylittleshell/commitreview/internal/styles"
	"github.com/atinylittleshell/commitreview/internal/ui"
	"github.com/atinylittleshell/commitreview/internal/watch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var BUILD_VERSION = "dev"

type rootOptions struct {
	configPath      string
	interval        string
	model           string
	host            string
	logLevel        string
	once            bool
	noReviewOnStart bool
	version         bool
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.ERROR("commitreview: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "commitreview [repo-path]",
		Short: "Review every new commit with a local Ollama model",
		Long: `commitreview watches a git repository and asks a model served by a local
Ollama daemon to review each new commit. Reviews appear in a full-screen
terminal window; --once reviews HEAD and prints the result instead.

Logs are written to ~/.commitreview/commitreview.log.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.version {
				fmt.Fprintln(out, BUILD_VERSION)
				return nil
			}
			return run(cmd.Context(), opts, args, out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.commitreview/config.yaml)")
	flags.StringVar(&opts.interval, "interval", "", "polling interval, e.g. 30s or 2m")
	flags.StringVar(&opts.model, "model", "", "Ollama model used for reviews")
	flags.StringVar(&opts.host, "host", "", "Ollama address, e.g. http://localhost:11434")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.once, "once", false, "review HEAD, print the review and exit")
	flags.BoolVar(&opts.noReviewOnStart, "no-review-on-start", false, "only review commits made after startup")
	flags.BoolVarP(&opts.version, "version", "v", false, "print the build version")

	return cmd
}

func run(ctx context.Context, opts *rootOptions, args []string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(nil)
	cfg, loadErrs, err := loadConfig(loader, opts)
	if err != nil {
		return err
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() // Flush any buffered log entries

	logger.Info("-------- new commitreview session --------", zap.Any("args", os.Args))
	for _, e := range loadErrs {
		logger.Warn("ignored config setting", zap.Error(e))
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	repoPath, err := resolveRepoPath(loader, cfg, args)
	if err != nil {
		return err
	}

	reviewer := review.NewOllamaReviewer(review.Options{
		BaseURL:      cfg.OpenAIBaseURL(),
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		Logger:       logger,
	})

	if opts.once || !isTerminal(out) {
		if repoPath == "" {
			repoPath = "."
		}
		return runOnce(ctx, cfg, repoPath, reviewer, out, logger)
	}

	if repoPath == "" {
		repoPath = workingRepository(logger)
	}
	return runInteractive(ctx, cfg, loader, repoPath, reviewer, logger)
}

// loadConfig reads the config file and environment, then applies flags on top.
func loadConfig(loader *config.Loader, opts *rootOptions) (*config.Config, []error, error) {
	path := opts.configPath
	if path == "" {
		path = core.ConfigFile()
	} else {
		expanded, err := loader.ExpandPath(path)
		if err != nil {
			return nil, nil, err
		}
		path = expanded
	}

	result, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, nil, err
	}

	if err := applyFlags(result.Config, opts); err != nil {
		return nil, nil, err
	}
	return result.Config, result.Errors, nil
}

func applyFlags(cfg *config.Config, opts *rootOptions) error {
	if opts.interval != "" {
		d, err := config.ParseDuration(opts.interval)
		if err != nil {
			return fmt.Errorf("--interval: %w", err)
		}
		cfg.Interval = config.Duration(d)
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.host != "" {
		cfg.Host = config.NormalizeHost(opts.host)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.noReviewOnStart {
		cfg.ReviewOnStart = false
	}
	return nil
}

// resolveRepoPath prefers the positional argument over the configured repo.
// An empty result falls back to the working directory's repository.
func resolveRepoPath(loader *config.Loader, cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return loader.ExpandPath(args[0])
	}
	return cfg.Repo, nil
}

// workingRepository returns the work tree containing the current directory,
// or "" so the window asks for one.
func workingRepository(logger *zap.Logger) string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	repo, err := gitrepo.Open(wd, gitrepo.Options{Logger: logger})
	if err != nil {
		logger.Debug("working directory is not a repository", zap.String("dir", wd), zap.Error(err))
		return ""
	}
	return repo.Root()
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	logLevel := cfg.ZapLevel()
	if BUILD_VERSION == "dev" {
		logLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	// Logs only go to file to avoid interfering with the Bubble Tea UI
	// Use `tail -f ~/.commitreview/commitreview.log` to monitor logs in real-time
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logLevel
	loggerConfig.OutputPaths = []string{
		core.LogFile(),
	}
	loggerConfig.ErrorOutputPaths = []string{
		core.LogFile(),
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// runOnce reviews the current HEAD and prints the result.
func runOnce(ctx context.Context, cfg *config.Config, repoPath string, reviewer review.Reviewer, out io.Writer, logger *zap.Logger) error {
	repo, err := gitrepo.Open(repoPath, gitrepo.Options{
		MaxDiffBytes: cfg.MaxDiffBytes,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	commit, err := repo.Head(ctx)
	if err != nil {
		if errors.Is(err, gitrepo.ErrNoCommits) {
			return fmt.Errorf("%s has no commits to review", repo.Root())
		}
		return err
	}

	reviewCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	defer cancel()
	result, err := reviewer.Review(reviewCtx, commit)
	if err != nil {
		return err
	}

	logger.Info("printed review", zap.String("hash", commit.Hash), zap.Duration("duration", result.Duration))

	fmt.Fprintln(out, styles.HEADER("Commit Review"))
	fmt.Fprintf(out, "%s %s\n", styles.COMMIT(commit.ShortHash), commit.Subject)
	fmt.Fprintln(out, styles.DIM(fmt.Sprintf("%s · %s · %s in %s",
		commit.Author, repo.Root(), result.Model, result.Duration.Round(100*time.Millisecond))))
	fmt.Fprintln(out)
	fmt.Fprintln(out, result.Text)
	return nil
}

func runInteractive(ctx context.Context, cfg *config.Config, loader *config.Loader, repoPath string, reviewer review.Reviewer, logger *zap.Logger) error {
	fs := filesystem.DefaultFileSystem{}

	// Check for updates in background
	updates := appupdate.HandleSelfUpdate(
		BUILD_VERSION,
		logger,
		fs,
		appupdate.DefaultUpdater{},
	)

	notifier := watch.NewNotifier(logger, 0)
	defer notifier.Close()

	model := ui.New(ui.Options{
		Context:  ctx,
		Config:   cfg,
		RepoPath: repoPath,
		Open: func(path string) (ui.Repo, error) {
			repo, err := gitrepo.Open(path, gitrepo.Options{
				MaxDiffBytes: cfg.MaxDiffBytes,
				Logger:       logger,
			})
			if err != nil {
				return nil, err
			}
			return repo, nil
		},
		Reviewer: reviewer,
		Notifier: notifier,
		Candidates: func() []string {
			return gitrepo.Discover(cfg.SearchRoots, gitrepo.DefaultDiscoverDepth)
		},
		ExpandPath:    loader.ExpandPath,
		UpdateNotices: updates,
		Notice:        newerVersionNotice(appupdate.RecordedNewerVersion(BUILD_VERSION, fs)),
		Version:       BUILD_VERSION,
		Logger:        logger,
	})

	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func newerVersionNotice(version string) string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("commitreview %s is available", version)
}
