// Command codegraph is the CLI binding shell: a thin Cobra wrapper with no
// business logic of its own, delegating every subcommand straight to
// internal/codegraph.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codegraph/indexer/internal/codegraph"
	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/store"
)

var (
	dbDir      string
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codegraph",
	Short: "Build and query a typed code graph for a repository",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbDir, "db-dir", defaultDBDir(), "directory holding the project's SQLite database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".codegraph.hcl", "path to an optional HCL config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "one of error, warn, info, debug, trace")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(paramTypesCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(schemaCmd)
}

func defaultDBDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/codegraph"
	}
	return ".codegraph"
}

func initLogger(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug", "trace":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Warn("config.load", "path", configPath, "err", err)
		return config.Default()
	}
	return cfg
}

var incremental bool

var indexCmd = &cobra.Command{
	Use:   "index <repo-dir> [paths...]",
	Short: "Extract and persist a repository's code graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir := args[0]
		paths := args[1:]

		g, err := codegraph.Open(dbDir, repoDir, loadConfig())
		if err != nil {
			return err
		}
		defer g.Close()

		stats, err := g.Index(context.Background(), paths, incremental)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <repo-dir> <cypher-query>",
	Short: "Run a Cypher-like query against an indexed repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir, q := args[0], args[1]

		g, err := codegraph.Open(dbDir, repoDir, loadConfig())
		if err != nil {
			return err
		}
		defer g.Close()

		result, err := g.Query(q)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var deleteDir bool

var cleanCmd = &cobra.Command{
	Use:   "clean <repo-dir>",
	Short: "Drop an indexed repository's graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir := args[0]

		g, err := codegraph.Open(dbDir, repoDir, loadConfig())
		if err != nil {
			return err
		}
		return g.Clean(deleteDir)
	},
}

var paramTypesCmd = &cobra.Command{
	Use:   "param-types <repo-dir> <file-path> <line>",
	Short: "Print the resolved type definitions referenced by the function at file-path:line",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir, filePath := args[0], args[1]
		line, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("line must be an integer: %w", err)
		}

		g, err := codegraph.Open(dbDir, repoDir, loadConfig())
		if err != nil {
			return err
		}
		defer g.Close()

		types, err := g.GetFuncParamTypes(filePath, line)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(types)
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List every indexed project under --db-dir",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		router, err := store.NewRouterWithDir(dbDir)
		if err != nil {
			return err
		}
		defer router.CloseAll()

		projects, err := router.ListProjects()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(projects)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema <repo-dir>",
	Short: "Summarize an indexed repository's node labels, edge types, and sample names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir := args[0]

		g, err := codegraph.Open(dbDir, repoDir, loadConfig())
		if err != nil {
			return err
		}
		defer g.Close()

		info, err := g.Schema()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

func init() {
	indexCmd.Flags().BoolVar(&incremental, "incremental", false, "skip the run if no indexed file changed")
	cleanCmd.Flags().BoolVar(&deleteDir, "delete-dir", false, "also remove the project's on-disk database file")
}
