package verify

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
)

// Check reports whether the file at path is a structurally valid dataset.
// NetCDF files (.nc) are opened with the NetCDF parser and the handle is
// released immediately; other formats fall back to a readability check.
// Errors never escape: both outcomes are logged and reported as a bool.
//
// This is an openability check, not a checksum. A truncated file that
// still parses will pass.
func Check(path string, logger *slog.Logger) bool {
	if strings.ToLower(filepath.Ext(path)) != ".nc" {
		return checkReadable(path, logger)
	}

	nc, err := netcdf.Open(path)
	if err != nil {
		logger.Warn("integrity check failed", "file", path, "error", err)
		return false
	}
	vars := nc.ListVariables()
	nc.Close()

	logger.Info("integrity check passed", "file", path, "variables", len(vars))
	return true
}

// checkReadable verifies that the file exists, is non-empty and its first
// bytes can be read.
func checkReadable(path string, logger *slog.Logger) bool {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("integrity check failed", "file", path, "error", err)
		return false
	}
	defer f.Close()

	buf := make([]byte, 1)
	if _, err := f.Read(buf); err != nil {
		logger.Warn("integrity check failed", "file", path, "error", err)
		return false
	}

	logger.Info("integrity check passed", "file", path)
	return true
}
