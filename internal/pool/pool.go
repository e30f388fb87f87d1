package pool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/shuangma1990/Automated-ERA5-downloader/internal/progress"
)

// Options configures the worker pool.
type Options struct {
	// Workers is the number of parallel workers. Default: 4
	Workers int

	// Logger receives per-year failure entries.
	Logger *slog.Logger

	// Progress is an optional progress reporter.
	Progress *progress.Reporter
}

// Result is the outcome of one year's task.
type Result struct {
	Year int
	Err  error
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	Succeeded   int
	Failed      int
	FailedYears []int
}

// Run executes fn once per year across a fixed-size pool of workers and
// collects results in completion order. Failures (including panics) are
// logged and swallowed per year: one bad year never aborts its siblings
// and never fails the run as a whole.
func Run(ctx context.Context, years []int, fn func(ctx context.Context, year int) error, opts Options) Summary {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	jobs := make(chan int)
	results := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for year := range jobs {
				if opts.Progress != nil {
					opts.Progress.TaskStarted()
				}
				err := runOne(ctx, year, fn)
				if opts.Progress != nil {
					if err != nil {
						opts.Progress.TaskFailed()
					} else {
						opts.Progress.TaskCompleted()
					}
				}
				results <- Result{Year: year, Err: err}
			}
		}()
	}

	// Feed jobs to workers
	go func() {
		defer close(jobs)
		for _, year := range years {
			select {
			case jobs <- year:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var s Summary
	for r := range results {
		if r.Err != nil {
			logger.Error("year failed", "year", r.Year, "error", r.Err)
			s.Failed++
			s.FailedYears = append(s.FailedYears, r.Year)
		} else {
			s.Succeeded++
		}
	}
	sort.Ints(s.FailedYears)
	return s
}

// runOne invokes fn with panic recovery at the worker boundary.
func runOne(ctx context.Context, year int, fn func(ctx context.Context, year int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return fn(ctx, year)
}
