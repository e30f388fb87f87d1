package mirror

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"gocloud.dev/blob/memblob"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	data := []byte("netcdf artifact bytes")
	path := writeFile(t, t.TempDir(), "era5_2000.nc", data)

	if err := Upload(ctx, bucket, path, "era5_2000.nc", discardLogger()); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	got, err := bucket.ReadAll(ctx, "era5_2000.nc")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("uploaded content mismatch: got %q", got)
	}
}

func TestUploadSkipsSameSize(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	// Pre-populate with different content of the same size
	if err := bucket.WriteAll(ctx, "era5_2000.nc", []byte("xxxxx"), nil); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	path := writeFile(t, t.TempDir(), "era5_2000.nc", []byte("local"))

	if err := Upload(ctx, bucket, path, "era5_2000.nc", discardLogger()); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	got, _ := bucket.ReadAll(ctx, "era5_2000.nc")
	if string(got) != "xxxxx" {
		t.Errorf("expected same-size object to be left alone, got %q", got)
	}
}

func TestUploadReplacesDifferentSize(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	if err := bucket.WriteAll(ctx, "era5_2000.nc", []byte("short"), nil); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	data := []byte("a longer local artifact")
	path := writeFile(t, t.TempDir(), "era5_2000.nc", data)

	if err := Upload(ctx, bucket, path, "era5_2000.nc", discardLogger()); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	got, _ := bucket.ReadAll(ctx, "era5_2000.nc")
	if string(got) != string(data) {
		t.Errorf("expected re-upload, got %q", got)
	}
}

func TestUploadMissingLocalFile(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	err := Upload(context.Background(), bucket, filepath.Join(t.TempDir(), "missing.nc"), "key", discardLogger())
	if err == nil {
		t.Error("expected error for missing local file")
	}
}
