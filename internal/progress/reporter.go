package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// TotalTasks is the number of year tasks in the run.
	TotalTasks int

	// Workers is the number of parallel workers.
	Workers int

	// Dataset is the dataset being fetched (for display).
	Dataset string

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Reporter outputs human-readable progress information.
type Reporter struct {
	opts Options

	mu         sync.Mutex
	completed  atomic.Int32
	failed     atomic.Int32
	inProgress atomic.Int32
	startTime  time.Time
	stopCh     chan struct{}
	stopped    bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.startTime = time.Now()

	fmt.Fprintf(r.opts.Output, "[era5dl] Fetching: %s\n", r.opts.Dataset)
	fmt.Fprintf(r.opts.Output, "[era5dl] Years: %d | Workers: %d\n",
		r.opts.TotalTasks,
		r.opts.Workers,
	)

	go r.updateLoop()
}

// Stop stops the progress reporter and prints the final line.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)

	r.render()

	r.mu.Lock()
	fmt.Fprintln(r.opts.Output)
	fmt.Fprintf(r.opts.Output, "[era5dl] Done in %s: %d ok, %d failed\n",
		time.Since(r.startTime).Round(time.Second),
		r.completed.Load(),
		r.failed.Load(),
	)
	r.mu.Unlock()
}

// TaskStarted marks a year task as in progress.
func (r *Reporter) TaskStarted() {
	r.inProgress.Add(1)
}

// TaskCompleted marks a year task as completed.
func (r *Reporter) TaskCompleted() {
	r.completed.Add(1)
	r.inProgress.Add(-1)
}

// TaskFailed marks a year task as failed (removes from in-progress).
func (r *Reporter) TaskFailed() {
	r.failed.Add(1)
	r.inProgress.Add(-1)
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.render()
		}
	}
}

func (r *Reporter) render() {
	// Serializes writers: the update loop and Stop may render concurrently.
	r.mu.Lock()
	defer r.mu.Unlock()

	done := r.completed.Load() + r.failed.Load()
	fmt.Fprintf(r.opts.Output, "\r[era5dl] Years: %d/%d (running %d, failed %d)",
		done,
		r.opts.TotalTasks,
		r.inProgress.Load(),
		r.failed.Load(),
	)
}
