package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"honourus/internal/app"
	"honourus/internal/db"
	"honourus/internal/engine"
	"honourus/internal/migrate"
	"honourus/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "honourus",
	Short: "Honourus CLI",
	Long: `Honourus tracks work, peer recognition and credits.
- Tasks: assigned work with priority-based credits; completing a task pays its assignee under the completion award policy.
- Recognitions: peers thank each other and the recipient is credited immediately.
- Ledger: every credit award is a ledger entry; a user's credits are the ledger sum.
- Policy: credit amounts, the recognition catalog and webhooks live in a YAML document stored in the database.
- Analytics: the unsung-hero ranking and per-user contribution heatmaps.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(viper.GetString("log-level"), viper.GetString("log-format"))
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "error: read config:", err)
			os.Exit(1)
		}
	}
	viper.SetEnvPrefix("HONOURUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "runtime config file (yaml, toml or json)")
	flags.StringP("workspace", "w", ".", "workspace directory for the sqlite database")
	flags.String("db-driver", db.DriverSQLite, "database driver: sqlite or pgx")
	flags.String("db-dsn", "", "database DSN (defaults to the workspace sqlite file)")
	flags.Bool("json", false, "output JSON")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "text", "log format: text or json")
	for _, name := range []string{"config", "workspace", "db-driver", "db-dsn", "json", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(policyCmd())
	rootCmd.AddCommand(analyticsCmd())
	rootCmd.AddCommand(kvCmd())
}

func setupLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid --log-format %q", format)
	}
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				log.WithField("driver", string(r.Dialect)).Info("migrations applied")
				return nil
			})
		},
	}
}

// --- helpers ---

func openDB() (repo.Repo, func(), error) {
	conn, dialect, err := db.Open(db.Config{
		Driver:    viper.GetString("db-driver"),
		DSN:       viper.GetString("db-dsn"),
		Workspace: viper.GetString("workspace"),
	})
	if err != nil {
		return repo.Repo{}, nil, err
	}
	if err := migrate.Migrate(conn, dialect); err != nil {
		conn.Close()
		return repo.Repo{}, nil, err
	}
	return repo.New(conn, dialect), func() { conn.Close() }, nil
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	r, closeFn, err := openDB()
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, r)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withRepo(ctx, func(ctx context.Context, r repo.Repo) error {
		cfg, err := app.ResolvePolicy(ctx, r, "")
		if err != nil {
			return err
		}
		return fn(ctx, engine.New(r.DB, r.Dialect, cfg))
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRows renders a table, or v as JSON when --json is set.
func printRows(v any, header table.Row, rows []table.Row) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	tw.Render()
	return nil
}
