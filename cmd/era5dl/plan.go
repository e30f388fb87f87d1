package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/shuangma1990/Automated-ERA5-downloader/internal/verify"
)

// runPlan prints what a fetch would do for each requested year without
// touching the network.
func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	cf := registerCommon(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: era5dl plan [options]

Show the deterministic output path and planned action for every year in
the requested range. Years with a valid file are skipped by fetch; years
with a missing or invalid file would be downloaded.

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
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	fmt.Printf("Dataset: %s\n", cfg.Dataset)
	fmt.Printf("Variables: %s\n", strings.Join(cfg.Variables, ", "))
	fmt.Printf("Years: %d-%d\n", cfg.StartYear, cfg.EndYear)
	fmt.Printf("Output: %s\n\n", cfg.OutputDir)

	skip := 0
	for _, year := range cfg.Years() {
		t := newTask(cfg, year)
		path := t.OutputPath()

		action := "fetch"
		if _, err := os.Stat(path); err == nil && verify.Check(path, quiet) {
			action = "skip"
			skip++
		}
		fmt.Printf("%d  %-6s %s\n", year, action, path)
	}

	total := len(cfg.Years())
	fmt.Printf("\n%d years: %d to fetch, %d already satisfied\n", total, total-skip, skip)
	return ExitSuccess
}
