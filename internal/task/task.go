package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shuangma1990/Automated-ERA5-downloader/internal/cds"
	"github.com/shuangma1990/Automated-ERA5-downloader/internal/verify"
)

// ErrIncomplete is returned when a freshly downloaded file fails the
// integrity check.
var ErrIncomplete = errors.New("incomplete download")

// Retriever fetches one request and streams the result to w.
// *cds.Client implements it.
type Retriever interface {
	Retrieve(ctx context.Context, req cds.Request, w io.Writer) (int64, error)
}

// Task describes the retrieval of one year of a dataset. Immutable once
// constructed; one instance per requested year.
type Task struct {
	Year        int
	Dataset     string
	ProductType string
	Variables   []string
	Months      []string
	Days        []string
	Hours       []string
	Format      string
	OutputDir   string
}

// FileName returns the artifact name for this task. It is a pure
// function of dataset, variables, year and format, so distinct years
// never collide.
func (t Task) FileName() string {
	ext := "nc"
	if t.Format == "grib" {
		ext = "grib"
	}
	return fmt.Sprintf("%s_%s_%d.%s", t.Dataset, strings.Join(t.Variables, "-"), t.Year, ext)
}

// OutputPath returns the full path of the artifact.
func (t Task) OutputPath() string {
	return filepath.Join(t.OutputDir, t.FileName())
}

// Request returns the CDS request for this task.
func (t Task) Request() cds.Request {
	return cds.Request{
		Dataset:     t.Dataset,
		ProductType: t.ProductType,
		Variables:   t.Variables,
		Year:        t.Year,
		Months:      t.Months,
		Days:        t.Days,
		Hours:       t.Hours,
		Format:      t.Format,
	}
}

// Run produces the year's artifact.
//
// If the artifact already exists and passes the integrity check the task
// returns without any network call. Otherwise the file is fetched to a
// .partial sibling, renamed into place and re-verified. A file that
// fails the post-download check is reported as ErrIncomplete; the
// invalid file stays on disk, so a re-run fails the validity check and
// fetches again.
func (t Task) Run(ctx context.Context, client Retriever, logger *slog.Logger) error {
	path := t.OutputPath()

	if _, err := os.Stat(path); err == nil {
		if verify.Check(path, logger) {
			logger.Info("already satisfied", "year", t.Year, "file", path)
			return nil
		}
		logger.Warn("existing file invalid, fetching again", "year", t.Year, "file", path)
	}

	tmp := path + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	logger.Info("requesting", "year", t.Year, "dataset", t.Dataset, "variables", t.Variables)

	n, err := client.Retrieve(ctx, t.Request(), f)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("retrieve year %d: %w", t.Year, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}

	if !verify.Check(path, logger) {
		return fmt.Errorf("year %d: %w: %s", t.Year, ErrIncomplete, path)
	}

	logger.Info("downloaded", "year", t.Year, "file", path, "bytes", n)
	return nil
}
