// Package errors provides the pipeline's standardized error type. It is
// modeled directly on the teacher's pkg/errors.AppError and extends it with
// the spec's error-kind taxonomy ({input, acquisition, framing, llm, cache,
// io}) so the orchestrator can translate a failure into the right SSE event
// without string-matching messages.
package errors

import (
	"fmt"
	"runtime"
	"time"
)

// Kind is the error taxonomy the orchestrator switches on to pick an event
// type and a recovery strategy.
type Kind string

const (
	KindInput       Kind = "input"
	KindAcquisition Kind = "acquisition"
	KindFraming     Kind = "framing"
	KindLLM         Kind = "llm"
	KindCache       Kind = "cache"
	KindIO          Kind = "io"
)

// Severity levels for errors, carried over unchanged from the teacher.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Error codes for the pipeline's own failure modes. Kept alongside Kind
// rather than replacing it: Code identifies the specific condition, Kind
// identifies the taxonomy bucket the orchestrator reacts to.
const (
	CodeInputUnparseable    = "INPUT_UNPARSEABLE"
	CodeAcquisitionFailed   = "ACQUISITION_FAILED"
	CodeFramingMalformed    = "FRAMING_MALFORMED"
	CodeLLMTimeout          = "LLM_TIMEOUT"
	CodeLLMBadResponse      = "LLM_BAD_RESPONSE"
	CodeCacheL2Unavailable  = "CACHE_L2_UNAVAILABLE"
	CodeReportIOFailed      = "REPORT_IO_FAILED"
)

// AppError is the pipeline's standardized error, modeled on the teacher's
// pkg/errors.AppError.
type AppError struct {
	Kind       Kind                   `json:"kind"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Severity   Severity               `json:"severity"`
}

// New creates an AppError of the given kind, recording the caller's site.
func New(kind Kind, code, component, operation, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		Component:  component,
		Operation:  operation,
		StackTrace: fmt.Sprintf("%s:%d", file, line),
		Metadata:   make(map[string]interface{}),
		Timestamp:  time.Now(),
		Severity:   SeverityMedium,
	}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s/%s: %s: %v", e.Component, e.Operation, e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s/%s: %s", e.Component, e.Operation, e.Kind, e.Code, e.Message)
}

// Wrap attaches cause as the underlying error.
func (e *AppError) Wrap(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithMetadata attaches a metadata key/value pair for structured logging.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithSeverity overrides the default medium severity.
func (e *AppError) WithSeverity(severity Severity) *AppError {
	e.Severity = severity
	return e
}

// Recoverable reports whether the current request can continue past this
// error (as opposed to terminating the request). Per spec, unrecoverable
// errors terminate only the current request, never the process.
func (e *AppError) Recoverable() bool {
	switch e.Kind {
	case KindAcquisition, KindFraming, KindCache:
		return true
	case KindIO:
		return false
	default:
		return e.Severity != SeverityCritical
	}
}

// ToMap converts the error to a map for structured logging via logrus.Fields.
func (e *AppError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_kind":      string(e.Kind),
		"error_code":      e.Code,
		"error_message":   e.Message,
		"error_component": e.Component,
		"error_operation": e.Operation,
		"error_severity":  string(e.Severity),
		"error_timestamp": e.Timestamp,
	}
	if e.Cause != nil {
		result["error_cause"] = e.Cause.Error()
	}
	for k, v := range e.Metadata {
		result[fmt.Sprintf("error_meta_%s", k)] = v
	}
	return result
}

// Convenience constructors, one per taxonomy bucket.

// InputError reports an unparseable prompt or missing parameters.
func InputError(operation, message string) *AppError {
	return New(KindInput, CodeInputUnparseable, "parameters", operation, message)
}

// AcquisitionError reports a failed remote fetch or file read. Per spec this
// is recoverable: the step is treated as producing zero sources.
func AcquisitionError(operation, message string) *AppError {
	return New(KindAcquisition, CodeAcquisitionFailed, "acquisition", operation, message).WithSeverity(SeverityLow)
}

// FramingError reports a malformed record within a file; not fatal, the
// record is skipped.
func FramingError(operation, message string) *AppError {
	return New(KindFraming, CodeFramingMalformed, "traceextract", operation, message).WithSeverity(SeverityLow)
}

// LLMError reports a provider timeout or non-2xx response.
func LLMError(operation, message string) *AppError {
	return New(KindLLM, CodeLLMTimeout, "llm", operation, message)
}

// CacheError reports an L2 I/O failure; the gateway logs and proceeds
// L1-only, it never fails the call.
func CacheError(operation, message string) *AppError {
	return New(KindCache, CodeCacheL2Unavailable, "cache", operation, message).WithSeverity(SeverityLow)
}

// IOError reports a report-write failure, propagated to the orchestrator.
func IOError(operation, message string) *AppError {
	return New(KindIO, CodeReportIOFailed, "report", operation, message).WithSeverity(SeverityHigh)
}

// IsAppError checks if an error is an *AppError.
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError converts an error to *AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}

// WrapError wraps a plain error into an AppError of the given kind, unless
// it already is one.
func WrapError(err error, kind Kind, component, operation, message string) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return New(kind, "WRAPPED_ERROR", component, operation, message).Wrap(err)
}
