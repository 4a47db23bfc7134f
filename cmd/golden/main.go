package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"golden-go/internal/app"
	"golden-go/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "golden",
	Short: "Golden repository refresh engine",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Registry:  %s (%s)\n", cfg.Registry.Type, cfg.Registry.DataDir)
		fmt.Printf("Interval:  %s\n", cfg.Refresh.Interval.Std())
		fmt.Printf("Workers:   %d\n", cfg.Refresh.Workers)
		fmt.Printf("Indexer:   %s\n", cfg.Indexer.Binary)
		return nil
	},
}

// repo command

var (
	repoAddKind     string
	repoAddBranch   string
	repoAddTemporal bool
	repoAddSCIP     bool
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage golden repositories",
}

var repoAddCmd = &cobra.Command{
	Use:   "add <alias> <upstream>",
	Short: "Register a golden repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RepoAdd")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RegisterRepo(cmd.Context(), args[0], repoAddKind, args[1], repoAddBranch, repoAddTemporal, repoAddSCIP); err != nil {
			return err
		}
		fmt.Printf("Registered %s (%s) from %s\n", args[0], repoAddKind, args[1])
		return nil
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RepoList")
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.ListRepos()
		if err != nil {
			return err
		}
		for _, rec := range recs {
			last := "never"
			if !rec.LastRefreshAt.IsZero() {
				last = rec.LastRefreshAt.Format(time.RFC3339)
			}
			fmt.Printf("%s\t%s\t%s\tlast refresh: %s\n", rec.Alias, rec.SourceKind, rec.Upstream, last)
		}
		return nil
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove <alias>",
	Short: "Unregister a repository (snapshots are left on disk)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RepoRemove")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveRepo(args[0]); err != nil {
			return err
		}
		fmt.Printf("Unregistered %s\n", args[0])
		return nil
	},
}

// refresh command

var refreshCmd = &cobra.Command{
	Use:   "refresh [alias]",
	Short: "Refresh one repository, or all when no alias is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Refresh")
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			res := a.RefreshOne(cmd.Context(), args[0])
			fmt.Printf("%s: %s\n", res.Alias, res.Message)
			if !res.Success {
				return fmt.Errorf("refresh failed for %s", res.Alias)
			}
			return nil
		}

		return a.RefreshAll(cmd.Context())
	},
}

// serve command

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh scheduler daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return a.Serve(ctx)
	},
}

// status command

var statusCmd = &cobra.Command{
	Use:   "status [alias]",
	Short: "Show refresh status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		var recs []*statusRow
		if len(args) == 1 {
			rec, err := a.GetRepo(args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("alias is not registered: %s", args[0])
			}
			recs = append(recs, &statusRow{rec.Alias, rec.LastRefreshAt, rec.LastError})
		} else {
			all, err := a.ListRepos()
			if err != nil {
				return err
			}
			for _, rec := range all {
				recs = append(recs, &statusRow{rec.Alias, rec.LastRefreshAt, rec.LastError})
			}
		}

		for _, row := range recs {
			last := "never"
			if !row.lastRefresh.IsZero() {
				last = row.lastRefresh.Format(time.RFC3339)
			}
			state := "ok"
			if row.lastError != "" {
				state = "error: " + row.lastError
			}
			fmt.Printf("%s\tlast refresh: %s\t%s\n", row.alias, last, state)
		}
		return nil
	},
}

type statusRow struct {
	alias       string
	lastRefresh time.Time
	lastError   string
}

// history command

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent refresh operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(historyLimit)
		if err != nil {
			return err
		}
		for _, op := range ops {
			fmt.Printf("%s\t%s\t%s\t%s\n",
				op.StartedAt.Format(time.RFC3339), op.Alias, op.Status, op.Message)
		}
		return nil
	},
}

// resolve command

var resolveCmd = &cobra.Command{
	Use:   "resolve <alias>",
	Short: "Resolve an alias to its physical repository path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Resolve")
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.Resolve(args[0])
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	repoAddCmd.Flags().StringVar(&repoAddKind, "kind", "git", "source kind: git or local")
	repoAddCmd.Flags().StringVar(&repoAddBranch, "branch", "", "default branch (git sources; discovered when empty)")
	repoAddCmd.Flags().BoolVar(&repoAddTemporal, "temporal", false, "enable temporal indexing")
	repoAddCmd.Flags().BoolVar(&repoAddSCIP, "scip", false, "enable SCIP indexing")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum operations to show")

	configCmd.AddCommand(configInitCmd, configListCmd)
	repoCmd.AddCommand(repoAddCmd, repoListCmd, repoRemoveCmd)
	rootCmd.AddCommand(configCmd, repoCmd, refreshCmd, serveCmd, statusCmd, historyCmd, resolveCmd)
}
