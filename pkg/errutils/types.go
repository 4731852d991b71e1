package errutils

import (
	"fmt"
	"strings"
)

// CatalogFetchError is returned by the catalog client for any transport,
// status or decode failure of a single request.
type CatalogFetchError struct {
	URL string
	Err error
}

func (e *CatalogFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *CatalogFetchError) Unwrap() error { return e.Err }

// Is reports ErrCatalogFetch as a match so callers can test the category.
func (e *CatalogFetchError) Is(target error) bool { return target == ErrCatalogFetch }

// NewCatalogFetchError wraps err with the URL that failed.
func NewCatalogFetchError(url string, err error) error {
	return &CatalogFetchError{URL: url, Err: err}
}

// StoreErrorKind tells whether a store failure happened while reading or writing.
type StoreErrorKind int

const (
	StoreRead StoreErrorKind = iota
	StoreWrite
)

// StoreError is returned by the local store for any database failure.
type StoreError struct {
	Kind StoreErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	kind := "read"
	if e.Kind == StoreWrite {
		kind = "write"
	}
	return fmt.Sprintf("store %s %s: %v", kind, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrStoreRead:
		return e.Kind == StoreRead
	case ErrStoreWrite:
		return e.Kind == StoreWrite
	}
	return false
}

// NewStoreReadError wraps a failed read of op. A nil err yields nil.
func NewStoreReadError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Kind: StoreRead, Op: op, Err: err}
}

// NewStoreWriteError wraps a failed write of op. A nil err yields nil.
func NewStoreWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Kind: StoreWrite, Op: op, Err: err}
}

// HashMismatchError is returned when a downloaded archive does not match the
// MD5 digest declared by the catalog.
type HashMismatchError struct {
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("%v: expected %s, got %s", ErrHashMismatch, strings.ToLower(e.Expected), e.Actual)
}

func (e *HashMismatchError) Is(target error) bool { return target == ErrHashMismatch }

// ExtractionError is returned when an archive cannot be unpacked.
// Path is the archive entry being processed, if any.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %v", ErrExtraction, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", ErrExtraction, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// MetadataMissingError is returned when an add-on root has no manifest file.
type MetadataMissingError struct {
	AddonName string
}

func (e *MetadataMissingError) Error() string {
	return fmt.Sprintf("%v: %s.txt", ErrMetadataMissing, e.AddonName)
}

func (e *MetadataMissingError) Is(target error) bool { return target == ErrMetadataMissing }
