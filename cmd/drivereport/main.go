package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/drivereport/internal/catalog"
	"github.com/TobiSchelling/drivereport/internal/config"
	"github.com/TobiSchelling/drivereport/internal/database"
	"github.com/TobiSchelling/drivereport/internal/metrics"
	"github.com/TobiSchelling/drivereport/internal/pdf"
	"github.com/TobiSchelling/drivereport/internal/pipeline"
	"github.com/TobiSchelling/drivereport/internal/server"
	"github.com/TobiSchelling/drivereport/internal/tokens"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "drivereport",
	Short:   "Driving behaviour reports",
	Long:    "drivereport turns driver telemetry batches into ranked, paginated driving reports (HTML, JSON and PDF).",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			setLogFlags()
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if strings.EqualFold(cfg.Logging.Level, "DEBUG") {
			verbose = true
		}
		setLogFlags()
		return nil
	},
}

func setLogFlags() {
	if verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(pdfCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("drivereport", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/drivereport/",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		files := []struct {
			name string
			data []byte
		}{
			{"config.yaml", config.DefaultConfigYAML},
			{"report-config.json", catalog.SampleDocumentJSON},
		}
		for _, f := range files {
			target := filepath.Join(config.ConfigDir(), f.name)
			if _, err := os.Stat(target); err == nil {
				fmt.Printf("Already exists: %s\n", target)
				continue
			}
			if err := os.WriteFile(target, f.data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", f.name, err)
			}
			fmt.Printf("Created: %s\n", target)
		}

		fmt.Println("Edit report-config.json to configure item names, thresholds and detail sections.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Datasets:")
		fmt.Printf("  Live: %d\n", stats.LiveDatasets)
		fmt.Printf("  Expired (not yet swept): %d\n", stats.ExpiredDatasets)
		fmt.Printf("  TTL: %s, sweep schedule %q\n", cfg.Datasets.TTL, cfg.Datasets.SweepSchedule)
		fmt.Println("\nBuilds:")
		fmt.Printf("  Runs: %s\n", humanize.Comma(int64(stats.Runs)))
		fmt.Printf("  Reports built: %s\n", humanize.Comma(int64(stats.ReportsBuilt)))

		runs, err := db.GetRecentRuns(5)
		if err != nil {
			return fmt.Errorf("getting runs: %w", err)
		}
		if len(runs) > 0 {
			fmt.Println("\nRecent runs:")
		}
		for _, r := range runs {
			fmt.Printf("  [%d] %s  %d drivers, %s", r.ID, deref(r.CreatedAt), r.DriverCount,
				time.Duration(r.DurationMS)*time.Millisecond)
			if r.DetailFailures > 0 {
				fmt.Printf(", %d detail failures", r.DetailFailures)
			}
			fmt.Printf("\n      %s (%s - %s)\n", r.Source, deref(r.PeriodStart), deref(r.PeriodEnd))
		}
		return nil
	},
}

// --- build command ---

var (
	dryRun   bool
	dataPath string
	outDir   string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build reports for a driver data file: catalog -> decode -> build -> write -> record",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		source := dataPath
		if source == "" {
			source = cfg.Report.DataPath
		}
		out := outDir
		if out == "" {
			out = filepath.Join(cfg.GetDataDir(), "reports", time.Now().Format("20060102-150405"))
		}

		pipe := pipeline.New(cfg, db, nil, verbose)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(source, out)
		} else {
			result = pipe.Run(ctx, source, out)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/5: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if result.Failed() {
			return fmt.Errorf("build failed")
		}
		if !dryRun {
			fmt.Printf("\nBuild complete! Reports are in %s\n", out)
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	buildCmd.Flags().StringVarP(&dataPath, "data", "d", "", "Driver data file (defaults to report.data_path)")
	buildCmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (defaults to a timestamped directory in the data dir)")
}

// --- serve command ---

var (
	servePort int
	noPDF     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		doc, err := catalog.Load(cfg.Report.CatalogPath)
		if err != nil {
			return err
		}

		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		m := metrics.New()
		opts := server.Options{
			Catalog:   doc,
			Store:     store,
			Metrics:   m,
			TTL:       cfg.Datasets.TTL,
			BaseURL:   cfg.BaseURL(),
			DataPath:  cfg.Report.DataPath,
			AccessLog: os.Stdout,
			Logger:    log.Default(),
			Verbose:   verbose,
			Workers:   cfg.Report.Workers,
		}
		if !noPDF {
			renderer, err := pdf.NewChromeRenderer(cfg.PDF)
			if err != nil {
				return fmt.Errorf("configuring pdf renderer: %w", err)
			}
			opts.PDF = renderer
		}

		srv, err := server.New(opts)
		if err != nil {
			return err
		}

		sweeper, err := tokens.NewSweeper(store, cfg.Datasets.SweepSchedule, log.Default(), m)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go sweeper.Run(ctx)

		fmt.Printf("Starting server at http://localhost:%d\n", cfg.Server.Port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, cfg.Server.Port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 3000, "Port to run server on")
	serveCmd.Flags().BoolVar(&noPDF, "no-pdf", false, "Disable PDF rendering")
}

// --- sweep command ---

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired datasets from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		sweeper, err := tokens.NewSweeper(db, cfg.Datasets.SweepSchedule, log.Default(), nil)
		if err != nil {
			return err
		}
		n, err := sweeper.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d expired dataset(s)\n", n)
		fmt.Printf("Next scheduled sweep: %s\n", humanize.Time(sweeper.Next(time.Now())))
		return nil
	},
}

// --- pdf command ---

var pdfCmd = &cobra.Command{
	Use:   "pdf [url] [output]",
	Short: "Render a report URL to a PDF file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		renderer, err := pdf.NewChromeRenderer(cfg.PDF)
		if err != nil {
			return err
		}
		data, err := renderer.RenderURL(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			return fmt.Errorf("writing pdf: %w", err)
		}
		fmt.Printf("Wrote %s (%s)\n", args[1], humanize.Bytes(uint64(len(data))))
		return nil
	},
}

// openStore returns the configured dataset store and its cleanup func.
func openStore() (tokens.Store, func(), error) {
	if cfg.Datasets.Backend == config.BackendMemory {
		return tokens.NewMemory(), func() {}, nil
	}
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DatabasePath())
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
