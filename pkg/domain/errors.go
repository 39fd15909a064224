package domain

import (
	"errors"
	"fmt"
)

// Code classifies store errors. Every failure surfaced by the engine carries
// exactly one code so callers can branch without string matching.
type Code string

// Error codes covering the full failure taxonomy.
const (
	// CodeNotFound indicates the id is absent on get/update/delete.
	CodeNotFound Code = "not_found"
	// CodeAlreadyExists indicates an id collision on create.
	CodeAlreadyExists Code = "already_exists"
	// CodeIntegrityViolation indicates a referential-integrity veto or a
	// master/sub sync-field violation.
	CodeIntegrityViolation Code = "integrity_violation"
	// CodeValidationFailure indicates a date-containment or dependency
	// resolution failure.
	CodeValidationFailure Code = "validation_failure"
	// CodeSerializationFailure indicates a persistence read/write error.
	CodeSerializationFailure Code = "serialization_failure"
	// CodeTransactionNotFound indicates an unknown transaction id.
	CodeTransactionNotFound Code = "transaction_not_found"
	// CodeUnknown is returned by CodeOf for errors the engine did not produce.
	CodeUnknown Code = "unknown"
)

// Error is the uniform failure value returned by store operations.
type Error struct {
	Code       Code
	Collection Collection
	ID         string
	Message    string
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.ID != "":
		return fmt.Sprintf("%s %q: %s", e.Collection, e.ID, e.Code)
	default:
		return string(e.Code)
	}
}

// CodeOf extracts the error code, returning CodeUnknown for foreign errors
// and an empty code for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	return CodeUnknown
}

// ErrNotFound builds a not-found error for the given record.
func ErrNotFound(collection Collection, id string) *Error {
	return &Error{Code: CodeNotFound, Collection: collection, ID: id, Message: fmt.Sprintf("%s %q not found", collection, id)}
}

// ErrAlreadyExists builds an id-collision error for the given record.
func ErrAlreadyExists(collection Collection, id string) *Error {
	return &Error{Code: CodeAlreadyExists, Collection: collection, ID: id, Message: fmt.Sprintf("%s %q already exists", collection, id)}
}

// ErrIntegrity builds a referential-integrity or sync-field violation.
func ErrIntegrity(collection Collection, id, message string) *Error {
	return &Error{Code: CodeIntegrityViolation, Collection: collection, ID: id, Message: message}
}

// ErrValidation builds a validation failure.
func ErrValidation(collection Collection, id, message string) *Error {
	return &Error{Code: CodeValidationFailure, Collection: collection, ID: id, Message: message}
}

// ErrSerialization wraps a persistence read/write failure.
func ErrSerialization(message string, cause error) *Error {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return &Error{Code: CodeSerializationFailure, Message: message}
}

// ErrTransactionNotFound builds an unknown-transaction error.
func ErrTransactionNotFound(id string) *Error {
	return &Error{Code: CodeTransactionNotFound, ID: id, Message: fmt.Sprintf("transaction %q not found", id)}
}

// BulkItemError records the failure of one item within a bulk operation.
type BulkItemError struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Err   error  `json:"-"`
}

// BulkResult reports a bulk operation's outcome. Bulk operations are
// explicitly non-transactional: already-applied items stay applied and the
// per-item errors itemize everything that failed.
type BulkResult struct {
	Succeeded int             `json:"succeeded"`
	Errors    []BulkItemError `json:"errors,omitempty"`
}

// OK reports whether every item succeeded.
func (r BulkResult) OK() bool { return len(r.Errors) == 0 }

// Report is the outcome of a read-only validation pass. Checks collect every
// violation rather than stopping at the first.
type Report struct {
	Valid  bool     `json:"isValid"`
	Errors []string `json:"errors,omitempty"`
}

// Add appends a violation message and marks the report invalid.
func (r *Report) Add(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Merge folds another report's violations into this one.
func (r *Report) Merge(other Report) {
	if len(other.Errors) == 0 {
		return
	}
	r.Valid = false
	r.Errors = append(r.Errors, other.Errors...)
}

// NewReport returns a report that is valid until a violation is added.
func NewReport() Report { return Report{Valid: true} }
