package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Upload copies the artifact at path into the bucket under key.
//
// The upload is skipped when the remote object already exists with the
// same size, so mirroring an unchanged artifact is cheap and re-running
// after a failed upload resumes where it left off.
func Upload(ctx context.Context, bucket *blob.Bucket, path, key string, logger *slog.Logger) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("mirror: stat %s: %w", path, err)
	}

	attrs, err := bucket.Attributes(ctx, key)
	if err == nil && attrs.Size == st.Size() {
		logger.Info("mirror up to date", "key", key, "bytes", attrs.Size)
		return nil
	}
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("mirror: check %s: %w", key, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("mirror: open %s: %w", path, err)
	}
	defer f.Close()

	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("mirror: create writer for %s: %w", key, err)
	}

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("mirror: upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mirror: finalize %s: %w", key, err)
	}

	logger.Info("mirrored", "key", key, "bytes", st.Size())
	return nil
}
