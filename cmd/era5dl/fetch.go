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

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/shuangma1990/Automated-ERA5-downloader/internal/cds"
	"github.com/shuangma1990/Automated-ERA5-downloader/internal/config"
	"github.com/shuangma1990/Automated-ERA5-downloader/internal/mirror"
	"github.com/shuangma1990/Automated-ERA5-downloader/internal/pool"
	"github.com/shuangma1990/Automated-ERA5-downloader/internal/progress"
	"github.com/shuangma1990/Automated-ERA5-downloader/internal/retry"
	"github.com/shuangma1990/Automated-ERA5-downloader/internal/task"
)

// commonFlags are the flags shared by fetch, plan and validate.
type commonFlags struct {
	configPath  *string
	output      *string
	dataset     *string
	productType *string
	variables   *string
	startYear   *int
	endYear     *int
	format      *string
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath:  fs.String("config", "", "YAML configuration file"),
		output:      fs.String("output", "", "Output directory (required)"),
		dataset:     fs.String("dataset", "", "CDS dataset id (default reanalysis-era5-single-levels)"),
		productType: fs.String("product-type", "", "Product type (default reanalysis)"),
		variables:   fs.String("variables", "", "Comma-separated variable list (default 2m_temperature)"),
		startYear:   fs.Int("start-year", 0, "First year, inclusive (default 1993)"),
		endYear:     fs.Int("end-year", 0, "Last year, inclusive (default 2023)"),
		format:      fs.String("format", "", "Output format: netcdf or grib (default netcdf)"),
	}
}

// load assembles the config: defaults, then config file, then
// environment, then flag overrides.
func (cf *commonFlags) load() (config.Config, error) {
	cfg := config.Default()

	if *cf.configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(*cf.configPath)
		if err != nil {
			return config.Config{}, err
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	override := config.Config{
		OutputDir:   *cf.output,
		Dataset:     *cf.dataset,
		ProductType: *cf.productType,
		StartYear:   *cf.startYear,
		EndYear:     *cf.endYear,
		Format:      *cf.format,
	}
	if *cf.variables != "" {
		override.Variables = config.SplitList(*cf.variables)
	}

	return cfg.Merge(override), nil
}

// newTask builds the immutable descriptor for one year.
func newTask(cfg config.Config, year int) task.Task {
	return task.Task{
		Year:        year,
		Dataset:     cfg.Dataset,
		ProductType: cfg.ProductType,
		Variables:   cfg.Variables,
		Months:      cfg.Months,
		Days:        cfg.Days,
		Hours:       cfg.Hours,
		Format:      cfg.Format,
		OutputDir:   cfg.OutputDir,
	}
}

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)

	cf := registerCommon(fs)
	months := fs.String("months", "", "Comma-separated month list (default: all months)")
	days := fs.String("days", "", "Comma-separated day list (default: all days)")
	hours := fs.String("hours", "", "Comma-separated hour list (default: all hours)")
	workers := fs.Int("workers", 0, "Number of parallel workers (default 4)")
	mirrorURL := fs.String("mirror", "", "Bucket URL to mirror verified artifacts to (s3://, gs://, file://)")
	logPath := fs.String("log", "", "Log file path (default era5_download.log)")
	showProgress := fs.Bool("progress", false, "Show live progress")
	attempts := fs.Int("retry-attempts", 0, "Attempts per year before giving up (default 5)")
	delay := fs.Duration("retry-delay", 0, "Initial backoff delay (default 60s)")
	factor := fs.Float64("retry-factor", 0, "Backoff multiplier (default 2)")
	key := fs.String("key", "", "CDS API key (default from CDSAPI_KEY or ~/.cdsapirc)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: era5dl fetch [options]

Download one file per year from the CDS API into the output directory.
Years whose file already exists and passes the integrity check are
skipped. Failed years are retried with exponential backoff and, once
retries are exhausted, logged and skipped; they never abort the run.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := cf.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	if *months != "" {
		cfg.Months = config.SplitList(*months)
	}
	if *days != "" {
		cfg.Days = config.SplitList(*days)
	}
	if *hours != "" {
		cfg.Hours = config.SplitList(*hours)
	}
	cfg = cfg.Merge(config.Config{
		Workers:  *workers,
		Mirror:   *mirrorURL,
		LogFile:  *logPath,
		Progress: *showProgress,
		Retry: config.RetryConfig{
			Attempts: *attempts,
			Delay:    *delay,
			Factor:   *factor,
		},
		CDS: config.CDSConfig{Key: *key},
	})

	if err := cfg.LoadCredentials(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	// One append-only log file for the whole run.
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return ExitGeneralError
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, nil))

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		return ExitGeneralError
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[era5dl] Received interrupt, shutting down...")
		cancel()
	}()

	client := cds.NewClient(cds.Options{
		BaseURL:      cfg.CDS.URL,
		Key:          cfg.CDS.Key,
		PollInterval: cfg.CDS.PollInterval,
	})

	var bucket *blob.Bucket
	if cfg.Mirror != "" {
		bucket, err = blob.OpenBucket(ctx, cfg.Mirror)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening mirror bucket: %v\n", err)
			return ExitGeneralError
		}
		defer bucket.Close()
	}

	years := cfg.Years()

	var reporter *progress.Reporter
	if cfg.Progress {
		reporter = progress.NewReporter(progress.Options{
			TotalTasks: len(years),
			Workers:    cfg.Workers,
			Dataset:    cfg.Dataset,
		})
		reporter.Start()
	}

	policy := retry.Policy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Factor:   cfg.Retry.Factor,
	}

	runYear := func(ctx context.Context, year int) error {
		t := newTask(cfg, year)
		return retry.Do(ctx, logger, fmt.Sprintf("year %d", year), policy, func(ctx context.Context) error {
			if err := t.Run(ctx, client, logger); err != nil {
				return err
			}
			if bucket != nil {
				return mirror.Upload(ctx, bucket, t.OutputPath(), t.FileName(), logger)
			}
			return nil
		})
	}

	logger.Info("starting fetch",
		"dataset", cfg.Dataset,
		"years", len(years),
		"start_year", cfg.StartYear,
		"end_year", cfg.EndYear,
		"workers", cfg.Workers,
	)
	started := time.Now()

	sum := pool.Run(ctx, years, runYear, pool.Options{
		Workers:  cfg.Workers,
		Logger:   logger,
		Progress: reporter,
	})

	if reporter != nil {
		reporter.Stop()
	}

	logger.Info("fetch finished",
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"elapsed", time.Since(started).Round(time.Second),
	)

	fmt.Fprintf(os.Stderr, "[era5dl] %d years ok, %d failed\n", sum.Succeeded, sum.Failed)
	if len(sum.FailedYears) > 0 {
		fmt.Fprintf(os.Stderr, "[era5dl] Failed years: %v (see %s)\n", sum.FailedYears, cfg.LogFile)
	}

	// Per-year failures are logged, never raised to the exit code.
	return ExitSuccess
}
