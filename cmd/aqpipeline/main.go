// Program aqpipeline loads an air quality CSV into a time-series store, prints summary
// statistics, stores weekly averages and renders charts of both series.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtraver/airquality/db"
	"github.com/mtraver/airquality/ingest"
	"github.com/mtraver/airquality/internal/config"
	"github.com/mtraver/airquality/internal/logging"
	"github.com/mtraver/airquality/pipeline"
	"github.com/mtraver/airquality/plot"
)

const appName = "aqpipeline"

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Flags. Each one overrides the environment variable of the same meaning when given.
var (
	csvPath     string
	valueColumn string
	source      string
	backend     string
	plotDir     string
	sentinel    string
	noPlot      bool
)

func registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&csvPath, "csv", "", "path to the semicolon-separated CSV file (env CSV_PATH)")
	fs.StringVar(&valueColumn, "column", "", "name of the column holding the value (env VALUE_COLUMN)")
	fs.StringVar(&source, "source", "", "source name stored in each reading's metadata (env SOURCE)")
	fs.StringVar(&backend, "backend", "", fmt.Sprintf("store backend, one of %s, %s, %s, %s (env STORE_BACKEND)",
		config.BackendMongo, config.BackendInfluxDB, config.BackendSQLite, config.BackendDatastore))
	fs.StringVar(&plotDir, "out", "", "directory in which to write the charts (env PLOT_DIR)")
	fs.StringVar(&sentinel, "sentinel", "", "drop rows whose value equals this, e.g. -200 for missing UCI data")
	fs.BoolVar(&noPlot, "noplot", false, "skip rendering charts")
}

func init() {
	registerFlags(flag.CommandLine)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage: %s [flags]

Loads the CSV, inserts every parseable row into the store, prints the mean, median
and standard deviation of the stored values, stores weekly averages and writes
raw.png, weekly.png and combined.png to the output directory.

Store connection settings are read from the environment or a .env file.

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
}

// applyFlags overlays the flags that were set on fs onto cfg.
func applyFlags(cfg config.Config, fs *flag.FlagSet) config.Config {
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "csv":
			cfg.CSVPath = v
		case "column":
			cfg.ValueColumn = v
		case "source":
			cfg.Source = v
		case "backend":
			cfg.Backend = v
		case "out":
			cfg.PlotDir = v
		}
	})
	return cfg
}

// parseSentinel returns nil for an empty string. A decimal comma is accepted.
func parseSentinel(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}

	v, err := ingest.ParseValue(s)
	if err != nil {
		return nil, fmt.Errorf("invalid sentinel: %w", err)
	}
	return &v, nil
}

func parseFlags() (config.Config, *float64, error) {
	flag.Parse()

	if flag.NArg() > 0 {
		return config.Config{}, nil, fmt.Errorf("unexpected arguments: %v", flag.Args())
	}

	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		return config.Config{}, nil, err
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg = applyFlags(cfg, flag.CommandLine)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	s, err := parseSentinel(sentinel)
	if err != nil {
		return config.Config{}, nil, err
	}

	return cfg, s, nil
}

func run(ctx context.Context, cfg config.Config, s *float64, logger *slog.Logger) error {
	store, err := db.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("failed to close store", "err", err)
		}
	}()

	opts := pipeline.Options{
		CSVPath: cfg.CSVPath,
		Ingest: ingest.Options{
			ValueColumn: cfg.ValueColumn,
			Source:      cfg.Source,
			Sentinel:    s,
		},
	}
	if !noPlot {
		opts.Plotter = plot.Renderer{Dir: cfg.PlotDir}
	}

	report, err := pipeline.Run(ctx, opts, store, logger)
	if err != nil {
		return err
	}

	report.Print(os.Stdout)
	for _, p := range report.Plots {
		fmt.Println("Wrote", p)
	}
	return nil
}

func main() {
	cfg, s, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "argument error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	logger := logging.New(os.Stderr, cfg, version, appName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, s, logger); err != nil {
		logger.Error("run failed", "backend", cfg.Backend, "err", err)
		stop()
		os.Exit(1)
	}
}
