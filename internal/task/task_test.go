package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/shuangma1990/Automated-ERA5-downloader/internal/cds"
	"github.com/shuangma1990/Automated-ERA5-downloader/internal/testutils"
)

// retrieverFunc adapts a function to the Retriever interface.
type retrieverFunc func(ctx context.Context, req cds.Request, w io.Writer) (int64, error)

func (f retrieverFunc) Retrieve(ctx context.Context, req cds.Request, w io.Writer) (int64, error) {
	return f(ctx, req, w)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTask(t *testing.T, year int) Task {
	return Task{
		Year:        year,
		Dataset:     "reanalysis-era5-single-levels",
		ProductType: "reanalysis",
		Variables:   []string{"2m_temperature"},
		Months:      []string{"01"},
		Days:        []string{"01"},
		Hours:       []string{"00:00"},
		Format:      "netcdf",
		OutputDir:   t.TempDir(),
	}
}

func writeNetCDF(w io.Writer) (int64, error) {
	n, err := w.Write(testutils.NetCDFBytes())
	return int64(n), err
}

func TestFileNameDeterministic(t *testing.T) {
	tk := testTask(t, 2000)

	want := "reanalysis-era5-single-levels_2m_temperature_2000.nc"
	if got := tk.FileName(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got := tk.FileName(); got != want {
		t.Errorf("file name not stable: got %q", got)
	}
}

func TestFileNameDistinctYears(t *testing.T) {
	a := testTask(t, 2000)
	b := a
	b.Year = 2001

	if a.FileName() == b.FileName() {
		t.Errorf("distinct years must not collide: %q", a.FileName())
	}
}

func TestFileNameMultipleVariables(t *testing.T) {
	tk := testTask(t, 2000)
	tk.Variables = []string{"10m_u_component_of_wind", "10m_v_component_of_wind"}

	want := "reanalysis-era5-single-levels_10m_u_component_of_wind-10m_v_component_of_wind_2000.nc"
	if got := tk.FileName(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFileNameGribExtension(t *testing.T) {
	tk := testTask(t, 2000)
	tk.Format = "grib"

	if got := tk.FileName(); got != "reanalysis-era5-single-levels_2m_temperature_2000.grib" {
		t.Errorf("unexpected grib file name %q", got)
	}
}

func TestRunDownloadsAndVerifies(t *testing.T) {
	tk := testTask(t, 2000)

	calls := 0
	client := retrieverFunc(func(ctx context.Context, req cds.Request, w io.Writer) (int64, error) {
		calls++
		return writeNetCDF(w)
	})

	if err := tk.Run(context.Background(), client, discardLogger()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected 1 retrieval, got %d", calls)
	}
	if _, err := os.Stat(tk.OutputPath()); err != nil {
		t.Errorf("expected artifact at %s: %v", tk.OutputPath(), err)
	}
	if _, err := os.Stat(tk.OutputPath() + ".partial"); !os.IsNotExist(err) {
		t.Error("expected .partial file to be gone")
	}
}

func TestRunShortCircuitsValidFile(t *testing.T) {
	tk := testTask(t, 2000)
	testutils.WriteNetCDF(t, tk.OutputPath())

	client := retrieverFunc(func(ctx context.Context, req cds.Request, w io.Writer) (int64, error) {
		t.Error("retriever must not be called when a valid artifact exists")
		return 0, nil
	})

	if err := tk.Run(context.Background(), client, discardLogger()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunRefetchesInvalidFile(t *testing.T) {
	tk := testTask(t, 2000)
	testutils.WriteGarbage(t, tk.OutputPath())

	calls := 0
	client := retrieverFunc(func(ctx context.Context, req cds.Request, w io.Writer) (int64, error) {
		calls++
		return writeNetCDF(w)
	})

	if err := tk.Run(context.Background(), client, discardLogger()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected invalid file to force a fetch, got %d calls", calls)
	}
}

func TestRunIncompleteDownload(t *testing.T) {
	tk := testTask(t, 2000)

	client := retrieverFunc(func(ctx context.Context, req cds.Request, w io.Writer) (int64, error) {
		n, err := w.Write([]byte("truncated garbage"))
		return int64(n), err
	})

	err := tk.Run(context.Background(), client, discardLogger())
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}

	// The invalid file stays in place; the next attempt fails the
	// validity check and fetches again.
	if _, statErr := os.Stat(tk.OutputPath()); statErr != nil {
		t.Errorf("expected invalid artifact to remain: %v", statErr)
	}

	calls := 0
	good := retrieverFunc(func(ctx context.Context, req cds.Request, w io.Writer) (int64, error) {
		calls++
		return writeNetCDF(w)
	})
	if err := tk.Run(context.Background(), good, discardLogger()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected re-run to fetch, got %d calls", calls)
	}
}

func TestRunRetrieveError(t *testing.T) {
	tk := testTask(t, 2000)
	boom := errors.New("network down")

	client := retrieverFunc(func(ctx context.Context, req cds.Request, w io.Writer) (int64, error) {
		return 0, boom
	})

	err := tk.Run(context.Background(), client, discardLogger())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped retrieve error, got %v", err)
	}
	if _, statErr := os.Stat(tk.OutputPath()); !os.IsNotExist(statErr) {
		t.Error("expected no artifact after failed retrieval")
	}
	if _, statErr := os.Stat(tk.OutputPath() + ".partial"); !os.IsNotExist(statErr) {
		t.Error("expected .partial file to be cleaned up")
	}
}

func TestRunRequestFields(t *testing.T) {
	tk := testTask(t, 1997)

	var got cds.Request
	client := retrieverFunc(func(ctx context.Context, req cds.Request, w io.Writer) (int64, error) {
		got = req
		return writeNetCDF(w)
	})

	if err := tk.Run(context.Background(), client, discardLogger()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.Year != 1997 {
		t.Errorf("expected year 1997, got %d", got.Year)
	}
	if got.Dataset != tk.Dataset {
		t.Errorf("expected dataset %q, got %q", tk.Dataset, got.Dataset)
	}
	if len(got.Variables) != 1 || got.Variables[0] != "2m_temperature" {
		t.Errorf("unexpected variables %v", got.Variables)
	}
	if got.Format != "netcdf" {
		t.Errorf("unexpected format %q", got.Format)
	}
}
