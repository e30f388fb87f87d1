package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shuangma1990/Automated-ERA5-downloader/internal/verify"
)

// runValidate checks every year's artifact in the output directory and
// reports a validity summary.
func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cf := registerCommon(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: era5dl validate [options]

Open every downloaded file in the requested year range and verify it
parses as a valid dataset. Missing files are reported but only invalid
files fail validation.

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

	var ok, invalid, missing int
	for _, year := range cfg.Years() {
		t := newTask(cfg, year)
		path := t.OutputPath()

		if _, err := os.Stat(path); err != nil {
			missing++
			fmt.Printf("%d  MISSING  %s\n", year, path)
			continue
		}
		if verify.Check(path, quiet) {
			ok++
			fmt.Printf("%d  OK       %s\n", year, path)
		} else {
			invalid++
			fmt.Printf("%d  INVALID  %s\n", year, path)
		}
	}

	fmt.Printf("\nChecked %d years: %d ok, %d invalid, %d missing\n",
		len(cfg.Years()), ok, invalid, missing)

	if invalid > 0 {
		fmt.Println("Status: INVALID")
		return ExitValidationFailed
	}
	fmt.Println("Status: VALID")
	return ExitSuccess
}
