package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Napageneral/bubble/internal/browse"
	"github.com/Napageneral/bubble/internal/bus"
	"github.com/Napageneral/bubble/internal/config"
	"github.com/Napageneral/bubble/internal/db"
	"github.com/Napageneral/bubble/internal/logger"
	"github.com/Napageneral/bubble/internal/settings"
	"github.com/Napageneral/bubble/internal/state"
	"github.com/Napageneral/bubble/internal/store"
	"github.com/Napageneral/bubble/internal/transfer"
)

var (
	version    = "dev"
	commit     = "none"
	buildDate  = "unknown"
	jsonOutput bool
)

// app bundles the services one command invocation needs.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	store     *store.Store
	settings  *settings.Service
	selection *browse.Selection
	transfer  *transfer.Service
	liveKV    *state.KV
	migration store.MigrationReport
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	dataDir, err := config.GetDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	d, err := db.Open()
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(d); err != nil {
		d.Close()
		return nil, err
	}

	kv := state.New(d, state.ScopeApp)
	st := store.New(kv, logger.Component("store"))
	report, err := st.MigrateIfNeeded(context.Background())
	if err != nil {
		d.Close()
		return nil, err
	}
	return &app{
		cfg:       cfg,
		db:        d,
		migration: report,
		store:     st,
		settings:  settings.New(kv, logger.Component("settings")),
		selection: browse.NewSelection(kv, logger.Component("selection")),
		transfer: transfer.NewService(st, d, logger.Component("transfer"), transfer.MergeOptions{
			RequireEmailAgreement: cfg.Import.RequireEmailAgreement,
		}),
		liveKV: state.New(d, state.ScopeLive),
	}, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// withApp runs fn against a freshly opened app and exits non-zero on error.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fail(err)
		}
		defer a.Close()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logger.WithContext(ctx, logger.L.With(slog.String("command", cmd.CommandPath())))
		if err := fn(ctx, a, args); err != nil {
			a.Close()
			fail(err)
		}
	}
}

func fail(err error) {
	if jsonOutput {
		printJSON(map[string]any{"ok": false, "message": err.Error()})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "bubble",
		Short: "Personal contacts with likely-caller matching",
		Long: `Bubble keeps a tagged personal address book, imports and exports
Outlook-compatible CSV, and tells you who an incoming call is probably from.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			} else {
				fmt.Printf("bubble %s (%s, %s)\n", version, commit, buildDate)
			}
		},
	})

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(contactsCmd())
	rootCmd.AddCommand(tagsCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(quarantineCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(callCmd())
	rootCmd.AddCommand(likelyCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(eventsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize bubble config and database",
		Run: func(cmd *cobra.Command, args []string) {
			type Result struct {
				OK        bool   `json:"ok"`
				Message   string `json:"message,omitempty"`
				ConfigDir string `json:"config_dir,omitempty"`
				DataDir   string `json:"data_dir,omitempty"`
				DBPath    string `json:"db_path,omitempty"`
			}

			configDir, err := config.GetConfigDir()
			if err != nil {
				fail(fmt.Errorf("failed to get config directory: %w", err))
			}
			dataDir, err := config.GetDataDir()
			if err != nil {
				fail(fmt.Errorf("failed to get data directory: %w", err))
			}
			for _, dir := range []string{configDir, dataDir} {
				if err := os.MkdirAll(dir, 0755); err != nil {
					fail(fmt.Errorf("failed to create %s: %w", dir, err))
				}
			}
			if err := db.Init(); err != nil {
				fail(fmt.Errorf("failed to initialize database: %w", err))
			}
			dbPath, err := db.GetPath()
			if err != nil {
				fail(fmt.Errorf("failed to get database path: %w", err))
			}

			cfg, err := config.Load()
			if err != nil {
				fail(err)
			}
			if err := cfg.Save(); err != nil {
				fail(fmt.Errorf("failed to write config: %w", err))
			}

			result := Result{OK: true, Message: "bubble initialized", ConfigDir: configDir, DataDir: dataDir, DBPath: dbPath}
			if jsonOutput {
				printJSON(result)
				return
			}
			fmt.Println("bubble initialized")
			fmt.Printf("  Config: %s\n", configDir)
			fmt.Printf("  Data:   %s\n", dataDir)
			fmt.Printf("  DB:     %s\n", dbPath)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring stored contacts to the current schema",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			report := a.migration
			if jsonOutput {
				printJSON(report)
				return nil
			}
			if !report.Ran {
				fmt.Printf("Schema already at v%d\n", report.To)
				return nil
			}
			fmt.Printf("Migrated v%d -> v%d: %d valid, %d quarantined\n", report.From, report.To, report.Valid, report.Invalid)
			return nil
		}),
	}
}

func quarantineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarantine",
		Short: "Inspect records set aside during migration or save",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List quarantine entries",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			keys, err := a.store.Quarantined(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(keys)
				return nil
			}
			if len(keys) == 0 {
				fmt.Println("No quarantined records")
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <key>",
		Short: "Print one quarantine entry",
		Args:  cobra.ExactArgs(1),
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			v, ok, err := a.store.QuarantineEntry(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no quarantine entry %s", args[0])
			}
			fmt.Println(v)
			return nil
		}),
	})
	return cmd
}

func eventsCmd() *cobra.Command {
	var after int64
	var limit int
	var typ string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded bus events",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			events, err := bus.List(ctx, a.db, after, limit, typ)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(events)
				return nil
			}
			for _, e := range events {
				payload := ""
				if e.Payload != nil {
					payload = *e.Payload
				}
				fmt.Printf("%d\t%s\t%d\t%s\n", e.Seq, e.Type, e.CreatedAt, payload)
			}
			return nil
		}),
	}
	cmd.Flags().Int64Var(&after, "after", 0, "Only events after this sequence number")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum events to list")
	cmd.Flags().StringVar(&typ, "type", "", "Filter by event type")
	return cmd
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
