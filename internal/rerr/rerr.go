// Package rerr provides error handling utilities for redbiom. It offers
// consistent error wrapping, logging, and handling patterns to improve
// error visibility throughout the codebase.
package rerr

import (
	"fmt"
	"log"
	"runtime"
	"strings"
)

// Op represents an operation name for error context.
type Op string

// Error represents an application error with context.
type Error struct {
	Op   Op     // Operation that failed
	Kind Kind   // Category of error
	Err  error  // Underlying error
	Msg  string // Additional context message
}

// Kind represents the category of error. The first block mirrors the
// teacher's generic kinds; the second block names the domain-specific
// failure modes this system's components raise.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindDatabase
	KindSearch
	KindIO
	KindValidation
	KindConfig
	KindNetwork
	KindParse

	// KindUnknownContext: an operation named a context that create-context
	// never registered.
	KindUnknownContext
	// KindAlreadyLoaded: a load targeted ids already represented on that
	// context/axis/tag triple (load is not idempotent by overwrite).
	KindAlreadyLoaded
	// KindEmptyTable: a load was given a table with zero non-zero entries
	// remaining after staging (e.g. every observation summed to zero).
	KindEmptyTable
	// KindMetadataMissing: an operation requires sample metadata to exist
	// (untagged, or for the referenced tag) before it can proceed.
	KindMetadataMissing
	// KindNonCountData: sample data load rejected a value that is not a
	// non-negative count.
	KindNonCountData
	// KindUnsupportedNode: the set-expression or where-expression parser
	// encountered a construct outside its grammar.
	KindUnsupportedNode
	// KindNoUsableStem: a set-expression NAME stemmed to the empty token
	// sequence and so cannot be looked up.
	KindNoUsableStem
	// KindEmptyQuery: a metadata-full query's set or where half was blank.
	KindEmptyQuery
	// KindWhereNotAllowedWithCategories: a categories=true query also
	// supplied a where-clause; the two modes are mutually exclusive.
	KindWhereNotAllowedWithCategories
	// KindAmbiguityInconsistent: a fetch's ambiguity-resolution policy
	// could not reconcile multiple redbiom_ids for one sample_id.
	KindAmbiguityInconsistent
	// KindTransport: the KV adapter's underlying connection/driver failed.
	KindTransport
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindDatabase:
		return "database"
	case KindSearch:
		return "search"
	case KindIO:
		return "io"
	case KindValidation:
		return "validation"
	case KindConfig:
		return "config"
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindUnknownContext:
		return "unknown_context"
	case KindAlreadyLoaded:
		return "already_loaded"
	case KindEmptyTable:
		return "empty_table"
	case KindMetadataMissing:
		return "metadata_missing"
	case KindNonCountData:
		return "non_count_data"
	case KindUnsupportedNode:
		return "unsupported_node"
	case KindNoUsableStem:
		return "no_usable_stem"
	case KindEmptyQuery:
		return "empty_query"
	case KindWhereNotAllowedWithCategories:
		return "where_not_allowed_with_categories"
	case KindAmbiguityInconsistent:
		return "ambiguity_inconsistent"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
		if e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error with the given arguments.
// Arguments can be: Op, Kind, error, string (message).
func E(args ...interface{}) *Error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case error:
			e.Err = a
		case string:
			e.Msg = a
		}
	}
	return e
}

// Wrap wraps an error with an operation name for context.
func Wrap(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapMsg wraps an error with an operation name and message.
func WrapMsg(op Op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Msg: msg, Err: err}
}

// SkipCounter tracks how many times operations have been skipped.
// Use this to provide visibility into silent error patterns.
type SkipCounter struct {
	Op         string
	Count      int
	LastErr    error
	LastDetail string
}

// NewSkipCounter creates a new skip counter for the given operation.
func NewSkipCounter(op string) *SkipCounter {
	return &SkipCounter{Op: op}
}

// Skip records a skipped operation due to an error.
func (s *SkipCounter) Skip(err error, detail string) {
	s.Count++
	s.LastErr = err
	s.LastDetail = detail
}

// Report logs a summary if any operations were skipped.
func (s *SkipCounter) Report() {
	if s.Count > 0 {
		log.Printf("Warning: %s skipped %d items (last error: %v, detail: %s)",
			s.Op, s.Count, s.LastErr, s.LastDetail)
	}
}

// ReportIfAny logs a summary only if the count exceeds threshold.
func (s *SkipCounter) ReportIfAny(threshold int) {
	if s.Count >= threshold {
		s.Report()
	}
}

// LogAndContinue logs an error and returns (for use in continue patterns).
// This replaces silent continue statements with visible logging.
func LogAndContinue(operation string, err error) {
	_, file, line, ok := runtime.Caller(1)
	if ok {
		if idx := strings.LastIndex(file, "/"); idx >= 0 {
			file = file[idx+1:]
		}
		log.Printf("Warning [%s:%d]: %s failed: %v", file, line, operation, err)
	} else {
		log.Printf("Warning: %s failed: %v", operation, err)
	}
}

// LogAndContinueWith logs an error with additional context.
func LogAndContinueWith(operation string, err error, context string) {
	_, file, line, ok := runtime.Caller(1)
	if ok {
		if idx := strings.LastIndex(file, "/"); idx >= 0 {
			file = file[idx+1:]
		}
		log.Printf("Warning [%s:%d]: %s failed for %s: %v", file, line, operation, context, err)
	} else {
		log.Printf("Warning: %s failed for %s: %v", operation, context, err)
	}
}

// MustHandle panics if the error is not nil.
func MustHandle(err error) {
	if err != nil {
		panic(fmt.Sprintf("unexpected error: %v", err))
	}
}

// Must panics if the error is not nil and returns the value otherwise.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("unexpected error: %v", err))
	}
	return v
}

// IgnoreError explicitly ignores an error with a reason.
func IgnoreError(err error, reason string) {
	if err != nil {
		log.Printf("Debug: ignoring error (%s): %v", reason, err)
	}
}

// IsKind checks if an error is of the given kind, unwrapping as needed.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// GetKind returns the kind of an error, or KindUnknown.
func GetKind(err error) Kind {
	e, ok := err.(*Error)
	if !ok {
		return KindUnknown
	}
	return e.Kind
}

// RowScanner provides utilities for bulk-scan operations with error tracking.
type RowScanner struct {
	skipped *SkipCounter
	scanned int
}

// NewRowScanner creates a new row scanner with error tracking.
func NewRowScanner(operation string) *RowScanner {
	return &RowScanner{
		skipped: NewSkipCounter(operation),
	}
}

// RecordScan records a successful scan.
func (r *RowScanner) RecordScan() {
	r.scanned++
}

// RecordSkip records a skipped row due to scan error.
func (r *RowScanner) RecordSkip(err error, identifier string) {
	r.skipped.Skip(err, identifier)
}

// Report logs statistics about the scanning operation.
func (r *RowScanner) Report() {
	if r.skipped.Count > 0 {
		log.Printf("Row scan complete: %d scanned, %d skipped (%.1f%% success rate)",
			r.scanned, r.skipped.Count,
			float64(r.scanned)/float64(r.scanned+r.skipped.Count)*100)
		r.skipped.Report()
	}
}

// SkippedCount returns the number of skipped rows.
func (r *RowScanner) SkippedCount() int {
	return r.skipped.Count
}

// ScannedCount returns the number of successfully scanned rows.
func (r *RowScanner) ScannedCount() int {
	return r.scanned
}
