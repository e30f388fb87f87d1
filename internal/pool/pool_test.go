package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunAllSucceed(t *testing.T) {
	years := []int{2000, 2001, 2002, 2003}

	var mu sync.Mutex
	seen := make(map[int]bool)

	sum := Run(context.Background(), years, func(ctx context.Context, year int) error {
		mu.Lock()
		seen[year] = true
		mu.Unlock()
		return nil
	}, Options{Workers: 2})

	if sum.Succeeded != 4 || sum.Failed != 0 {
		t.Errorf("expected 4 succeeded / 0 failed, got %d / %d", sum.Succeeded, sum.Failed)
	}
	for _, y := range years {
		if !seen[y] {
			t.Errorf("year %d never ran", y)
		}
	}
}

func TestRunOneYearFails(t *testing.T) {
	years := []int{2000, 2001, 2002}

	sum := Run(context.Background(), years, func(ctx context.Context, year int) error {
		if year == 2001 {
			return errors.New("exhausted retries")
		}
		return nil
	}, Options{Workers: 2})

	if sum.Succeeded != 2 {
		t.Errorf("expected siblings to succeed, got %d", sum.Succeeded)
	}
	if sum.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", sum.Failed)
	}
	if len(sum.FailedYears) != 1 || sum.FailedYears[0] != 2001 {
		t.Errorf("expected failed years [2001], got %v", sum.FailedYears)
	}
}

func TestRunPanicRecovered(t *testing.T) {
	years := []int{2000, 2001}

	sum := Run(context.Background(), years, func(ctx context.Context, year int) error {
		if year == 2000 {
			panic("boom")
		}
		return nil
	}, Options{Workers: 2})

	if sum.Succeeded != 1 || sum.Failed != 1 {
		t.Errorf("expected 1 succeeded / 1 failed, got %d / %d", sum.Succeeded, sum.Failed)
	}
	if len(sum.FailedYears) != 1 || sum.FailedYears[0] != 2000 {
		t.Errorf("expected failed years [2000], got %v", sum.FailedYears)
	}
}

func TestRunRespectsWorkerBound(t *testing.T) {
	years := make([]int, 20)
	for i := range years {
		years[i] = 2000 + i
	}

	var active, peak atomic.Int32

	Run(context.Background(), years, func(ctx context.Context, year int) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return nil
	}, Options{Workers: 3})

	if got := peak.Load(); got > 3 {
		t.Errorf("expected at most 3 concurrent tasks, saw %d", got)
	}
}

func TestRunContextCancelStopsFeeding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	years := make([]int, 100)
	for i := range years {
		years[i] = 2000 + i
	}

	var ran atomic.Int32
	sum := Run(ctx, years, func(ctx context.Context, year int) error {
		if ran.Add(1) == 1 {
			cancel()
		}
		return ctx.Err()
	}, Options{Workers: 1})

	if total := sum.Succeeded + sum.Failed; total == 100 {
		t.Error("expected cancellation to stop feeding new years")
	}
}

func TestRunFailedYearsSorted(t *testing.T) {
	years := []int{2005, 2001, 2003, 2002, 2004}

	sum := Run(context.Background(), years, func(ctx context.Context, year int) error {
		return fmt.Errorf("year %d broken", year)
	}, Options{Workers: 5})

	if sum.Failed != 5 {
		t.Fatalf("expected 5 failures, got %d", sum.Failed)
	}
	for i := 1; i < len(sum.FailedYears); i++ {
		if sum.FailedYears[i-1] > sum.FailedYears[i] {
			t.Errorf("failed years not sorted: %v", sum.FailedYears)
			break
		}
	}
}

func TestRunDefaultWorkers(t *testing.T) {
	sum := Run(context.Background(), []int{2000}, func(ctx context.Context, year int) error {
		return nil
	}, Options{})

	if sum.Succeeded != 1 {
		t.Errorf("expected run with default workers to succeed, got %+v", sum)
	}
}
