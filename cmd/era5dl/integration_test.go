//go:build integration

package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	_ "gocloud.dev/blob/s3blob"

	"github.com/shuangma1990/Automated-ERA5-downloader/internal/testutils"
)

func TestFetchMirrorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	payload := testutils.NetCDFBytes()

	t.Log("Starting CDS stub server...")
	stub := testutils.StartCDSServer(t, payload)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CDSAPI_URL", stub.URL())
	t.Setenv("CDSAPI_KEY", "test-key")

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "era5-mirror-bucket")
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	dir := t.TempDir()

	exitCode := run([]string{
		"fetch",
		"-output", dir,
		"-start-year", "2000",
		"-end-year", "2001",
		"-workers", "2",
		"-retry-delay", "100ms",
		"-mirror", minio.BucketURL,
		"-log", filepath.Join(dir, "run.log"),
	})
	if exitCode != ExitSuccess {
		t.Fatalf("fetch failed with exit code %d", exitCode)
	}

	bucket, err := minio.OpenBucket(ctx)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bucket.Close()

	for _, key := range []string{
		"reanalysis-era5-single-levels_2m_temperature_2000.nc",
		"reanalysis-era5-single-levels_2m_temperature_2001.nc",
	} {
		r, err := bucket.NewReader(ctx, key, nil)
		if err != nil {
			t.Fatalf("read mirrored object %s: %v", key, err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatalf("read mirrored object %s: %v", key, err)
		}
		if !bytes.Equal(data, payload) {
			t.Errorf("mirrored object %s does not match the downloaded artifact", key)
		}
	}

	// A second run is a no-op: artifacts are valid locally and the
	// mirror already holds identical objects.
	exitCode = run([]string{
		"fetch",
		"-output", dir,
		"-start-year", "2000",
		"-end-year", "2001",
		"-mirror", minio.BucketURL,
		"-log", filepath.Join(dir, "run.log"),
	})
	if exitCode != ExitSuccess {
		t.Fatalf("second fetch failed with exit code %d", exitCode)
	}
	if got := stub.Submits(); got != 2 {
		t.Errorf("expected no new submissions on the second run, got %d total", got)
	}
}
