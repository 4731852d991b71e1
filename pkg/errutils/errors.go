// Package errutils provides the error vocabulary of the addonctl add-on manager.
// It defines sentinel errors for each failure category, typed errors that carry
// the details a caller needs to report or react to a failure, and helpers for
// wrapping errors with context while keeping them matchable with errors.Is and
// errors.As.
package errutils

import (
	"fmt"
)

// Sentinel errors grouped by the component that produces them.
var (
	// Catalog errors are returned by the remote catalog client.

	// ErrCatalogFetch is matched by every *CatalogFetchError.
	ErrCatalogFetch = fmt.Errorf("catalog fetch failed")

	// ErrCatalogEmpty is returned when a detail feed answers with an empty record list.
	ErrCatalogEmpty = fmt.Errorf("catalog returned no records")

	// ErrUnknownGame is returned when feed discovery cannot find the configured game.
	ErrUnknownGame = fmt.Errorf("game not listed in global config")

	// Store errors are returned by the local SQLite store.

	// ErrStoreRead is matched by every *StoreError of read kind.
	ErrStoreRead = fmt.Errorf("store read failed")

	// ErrStoreWrite is matched by every *StoreError of write kind.
	ErrStoreWrite = fmt.Errorf("store write failed")

	// ErrConflictNoOp marks a write that affected zero rows because an identical
	// row already existed. Store helpers recover it; it never reaches callers.
	ErrConflictNoOp = fmt.Errorf("write affected no rows")

	// ErrAddonNotFound is returned when an add-on id is not present in the catalog mirror.
	ErrAddonNotFound = fmt.Errorf("addon not found")

	// ErrNotInstalled is returned when an operation requires an installed add-on.
	ErrNotInstalled = fmt.Errorf("addon is not installed")

	// Installer errors.

	// ErrHashMismatch is matched by every *HashMismatchError.
	ErrHashMismatch = fmt.Errorf("archive hash mismatch")

	// ErrExtraction is matched by every *ExtractionError.
	ErrExtraction = fmt.Errorf("archive extraction failed")

	// ErrInvalidFilePath is returned for archive entries that resolve outside the target root.
	ErrInvalidFilePath = fmt.Errorf("archive entry escapes target directory")

	// ErrEmptyArchive is returned when an archive has no entries to derive a root directory from.
	ErrEmptyArchive = fmt.Errorf("archive contains no entries")

	// ErrMetadataMissing is matched by every *MetadataMissingError.
	ErrMetadataMissing = fmt.Errorf("addon metadata file missing")

	// Hook errors.

	// ErrHookExecution is returned when a hook script fails to compile or run.
	ErrHookExecution = fmt.Errorf("hook execution failed")

	// ErrHookScript is returned when a hook script sets a non-empty err variable.
	ErrHookScript = fmt.Errorf("hook script reported an error")

	// Config errors are related to configuration file operations and validation.

	ErrEmptyConfigPath = fmt.Errorf(
		"config file path cannot be empty")

	ErrInvalidConfigPath = fmt.Errorf(
		"invalid config file path")

	ErrConfigParse = fmt.Errorf(
		"failed to parse config")

	// ErrConfigValidation is returned when configuration values fail validation.
	ErrConfigValidation = fmt.Errorf(
		"invalid configuration")

	ErrConfigEncode = fmt.Errorf(
		"failed to encode config")

	ErrConfigDirectory = fmt.Errorf(
		"failed to create config directory")

	ErrConfigFileCreate = fmt.Errorf(
		"failed to create config file")

	// ErrConfigFileExists is returned when attempting to create a configuration file that already exists.
	ErrConfigFileExists = fmt.Errorf("configuration file already exists (use --force to overwrite)")

	// ErrConfigEnv is returned when environment overrides cannot be applied.
	ErrConfigEnv = fmt.Errorf("failed to apply environment overrides")

	// ErrHTTPTimeoutNegative is returned when HTTP timeout is set to a negative value.
	ErrHTTPTimeoutNegative = fmt.Errorf("http_timeout cannot be negative")

	// ErrRequestsPerSecondNegative is returned when the request rate is negative.
	ErrRequestsPerSecondNegative = fmt.Errorf("requests_per_second cannot be negative")

	// ErrMaxConcurrentInvalid is returned when max_concurrent is less than 1.
	ErrMaxConcurrentInvalid = fmt.Errorf("max_concurrent must be at least 1")

	// ErrAddonDirEmpty is returned when no add-on directory is configured.
	ErrAddonDirEmpty = fmt.Errorf("addon_dir cannot be empty")

	// ErrInvalidLogLevel is returned when an invalid log level is specified.
	ErrInvalidLogLevel = fmt.Errorf("invalid log level")

	// ErrInvalidBoolValue is returned when an invalid boolean value is provided in the configuration.
	ErrInvalidBoolValue = fmt.Errorf("invalid boolean value")

	// ErrUnknownConfigKey is returned when an unknown configuration key is encountered.
	ErrUnknownConfigKey = fmt.Errorf("unknown configuration key")

	// ErrFeedsNotConfigured is returned when catalog feed URLs are missing.
	ErrFeedsNotConfigured = fmt.Errorf("catalog feeds are not configured (run sync to discover them)")

	// ErrPriceTableURLEmpty is returned when a price table refresh has no URL to fetch.
	ErrPriceTableURLEmpty = fmt.Errorf("price table URL is not configured")

	// CLI errors.

	// ErrNoAddonsSpecified is returned when a command requires add-on ids but none were given.
	ErrNoAddonsSpecified = fmt.Errorf("no addons specified")

	// ErrInvalidAddonID is returned when an add-on id argument is not a positive integer.
	ErrInvalidAddonID = fmt.Errorf("invalid addon id")

	// ErrResolutionChoice is returned when a resolution names neither or both of ignore and satisfied-by.
	ErrResolutionChoice = fmt.Errorf("exactly one of --ignore or --satisfied-by is required")

	// ErrFileExists is returned when a command would overwrite a file without --force.
	ErrFileExists = fmt.Errorf("file already exists (use --force to overwrite)")
)

// Wrap wraps an error with additional context.
// If the error is nil, Wrap returns nil.
//
// Example:
//
//	if err := someOperation(); err != nil {
//	    return errutils.Wrap(err, "failed to perform operation")
//	}
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
// If the error is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ErrAddonNotFoundWithID is a helper to create a wrapped error with the add-on id.
func ErrAddonNotFoundWithID(id int64) error {
	return fmt.Errorf("addon %d: %w", id, ErrAddonNotFound)
}

// ErrNotInstalledWithID is a helper to create a wrapped error with the add-on id.
func ErrNotInstalledWithID(id int64) error {
	return fmt.Errorf("addon %d: %w", id, ErrNotInstalled)
}

// ErrInvalidAddonIDWithValue is a helper to create a wrapped error with the rejected argument.
func ErrInvalidAddonIDWithValue(value string) error {
	return fmt.Errorf("%w: %q", ErrInvalidAddonID, value)
}

// ErrInvalidLogLevelWithDetails is a helper to create a wrapped error with the invalid level and valid options.
func ErrInvalidLogLevelWithDetails(level string) error {
	return fmt.Errorf("%w: '%s', must be one of: error, warn, info, debug", ErrInvalidLogLevel, level)
}

// ErrUnknownConfigKeyWithName is a helper to create a wrapped error with the key name.
func ErrUnknownConfigKeyWithName(key string) error {
	return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
}

// ErrInvalidBoolValueWithKey is a helper to create a wrapped error with the key and rejected value.
func ErrInvalidBoolValueWithKey(key, value string) error {
	return fmt.Errorf("%w for %s: %s", ErrInvalidBoolValue, key, value)
}
