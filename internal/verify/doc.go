// Package verify checks the structural validity of downloaded dataset
// files.
//
// A NetCDF artifact is considered valid when it can be opened by the
// NetCDF parser; the file handle is released immediately after the check.
// All errors are caught at the package boundary and converted to a
// boolean plus a logged diagnostic.
package verify
