// Package config defines configuration structures for the era5dl CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (ERA5DL_ prefix)
//   - YAML configuration file
//
// CDS API credentials additionally resolve from ~/.cdsapirc and the
// CDSAPI_URL / CDSAPI_KEY environment variables, matching the Python
// cdsapi client.
//
// Precedence, lowest to highest: defaults, ~/.cdsapirc, environment,
// config file, flags.
package config
