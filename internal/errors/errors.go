// Package errors holds the failure classes of a turn and the helpers that
// sort them. Upstream, turn and store failures get their own types so the
// server can map them to HTTP statuses and the orchestrator can tell a
// degraded turn from a dead one:
//
//	err := errors.NewUpstreamError("chat completion failed", errors.ErrRateLimited).
//	    WithCall("opinions").WithStatus(429)
//	if errors.IsRateLimited(err) { ... }
//
// Only rate limits are retried. Messages of user-facing errors may be sent
// to clients verbatim; everything else is reported as an internal error.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Callers import only this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity ranks how loudly an error is logged.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	// SeverityWarning degrades a result without failing it.
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Upstream-related sentinel errors
var (
	// ErrRateLimited indicates the provider rejected the call with a rate limit.
	ErrRateLimited = New("upstream rate limited")
	// ErrRetriesExhausted indicates every attempt allowed for a call was rate limited.
	ErrRetriesExhausted = New("upstream retries exhausted")
	// ErrUpstreamUnavailable indicates the provider could not be reached or answered with a server error.
	ErrUpstreamUnavailable = New("upstream unavailable")
	// ErrMalformedOutput indicates the provider answered with text that could not be parsed.
	ErrMalformedOutput = New("malformed upstream output")
)

// Turn-related sentinel errors
var (
	// ErrPartialAgentFailure indicates one analysis role failed and was omitted.
	ErrPartialAgentFailure = New("analysis role failed")
	// ErrSynthesisFailed indicates the synthesis stream failed or produced nothing usable.
	ErrSynthesisFailed = New("synthesis failed")
	// ErrTurnFatal indicates the turn cannot produce a result.
	ErrTurnFatal = New("turn failed")
	// ErrInputRejected indicates the idea text did not pass the relevance check.
	ErrInputRejected = New("input rejected")
	// ErrTransportClosed indicates the client stream was closed.
	ErrTransportClosed = New("transport closed")
)

var (
	ErrSessionNotFound = New("session not found")
	// ErrTurnExists rejects a second save of the same turn number.
	ErrTurnExists      = New("turn already saved")
	ErrTimeout         = New("operation timed out")
	ErrInvalidInput    = New("invalid input")
)

// ForgeError is the base interface for all ideaforge errors.
type ForgeError interface {
	error

	Unwrap() error
	Is(target error) bool
	Severity() Severity
	// IsRetryable is true only for rate limits.
	IsRetryable() bool
	// IsUserFacing is true when the message may be sent to clients.
	IsUserFacing() bool
}

type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// format renders "kind [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// UpstreamError represents a failed call to the language-model provider.
// It is retryable exactly when it wraps ErrRateLimited.
//
// Example:
//
//	err := errors.NewUpstreamError("chat completion failed", errors.ErrRateLimited).WithStatus(429)
//	fmt.Println(err) // "upstream error [status=429]: chat completion failed: upstream rate limited"
type UpstreamError struct {
	baseError
	Provider   string
	Call       string
	StatusCode int
	Attempts   int
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(message string, cause error) *UpstreamError {
	return &UpstreamError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  errors.Is(cause, ErrRateLimited),
			userFacing: false,
		},
	}
}

// WithProvider adds the provider name to the error context.
func (e *UpstreamError) WithProvider(provider string) *UpstreamError {
	e.Provider = provider
	return e
}

// WithCall adds the call label (opinions, critic, synthesis...) to the error context.
func (e *UpstreamError) WithCall(call string) *UpstreamError {
	e.Call = call
	return e
}

// WithStatus adds the HTTP status code to the error context.
func (e *UpstreamError) WithStatus(code int) *UpstreamError {
	e.StatusCode = code
	return e
}

// WithAttempts records how many attempts were made before giving up.
func (e *UpstreamError) WithAttempts(n int) *UpstreamError {
	e.Attempts = n
	return e
}

// WithRetryable overrides whether the error is retryable.
func (e *UpstreamError) WithRetryable(r bool) *UpstreamError {
	e.retryable = r
	return e
}

func (e *UpstreamError) Error() string {
	var parts []string
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.Call != "" {
		parts = append(parts, fmt.Sprintf("call=%s", e.Call))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Attempts != 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}
	return e.format("upstream error", parts)
}

func (e *UpstreamError) Is(target error) bool {
	if _, ok := target.(*UpstreamError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TurnError represents a failure while running a turn.
//
// Example:
//
//	err := errors.NewTurnError("opinion phase failed", cause).WithTurn(3).WithPhase("collecting_opinions")
type TurnError struct {
	baseError
	SessionID string
	Turn      int
	Phase     string
}

// NewTurnError creates a new TurnError. Turn errors are user-facing: their
// message is what the client sees in the error event.
func NewTurnError(message string, cause error) *TurnError {
	return &TurnError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

func (e *TurnError) WithSessionID(id string) *TurnError {
	e.SessionID = id
	return e
}

// WithTurn adds the turn number to the error context.
func (e *TurnError) WithTurn(turn int) *TurnError {
	e.Turn = turn
	return e
}

// WithPhase adds the orchestrator phase to the error context.
func (e *TurnError) WithPhase(phase string) *TurnError {
	e.Phase = phase
	return e
}

// WithSeverity sets the error severity.
func (e *TurnError) WithSeverity(s Severity) *TurnError {
	e.severity = s
	return e
}

// Message returns the message without context or cause.
func (e *TurnError) Message() string {
	return e.message
}

func (e *TurnError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Turn != 0 {
		parts = append(parts, fmt.Sprintf("turn=%d", e.Turn))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	return e.format("turn error", parts)
}

func (e *TurnError) Is(target error) bool {
	if _, ok := target.(*TurnError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StoreError represents a failure in the session store.
type StoreError struct {
	baseError
	Op        string
	SessionID string
}

// NewStoreError wraps cause from store operation op.
func NewStoreError(op string, cause error) *StoreError {
	return &StoreError{
		baseError: baseError{
			message:    op,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: false,
		},
		Op: op,
	}
}

func (e *StoreError) WithSessionID(id string) *StoreError {
	e.SessionID = id
	return e
}

func (e *StoreError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	return e.format("store error", parts)
}

func (e *StoreError) Is(target error) bool {
	if _, ok := target.(*StoreError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a resource that could not be found.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input.
type ValidationError struct {
	baseError
	Field string
	Value any
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError. Timeouts are not retried by
// the upstream client; only rate limits are.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// IsRetryable returns true if the error represents a condition the upstream
// client retries. Only errors wrapping ErrRateLimited qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var forgeErr ForgeError
	if As(err, &forgeErr) {
		return forgeErr.IsRetryable()
	}

	return Is(err, ErrRateLimited)
}

// IsRateLimited reports whether err is, or wraps, a rate-limit rejection.
func IsRateLimited(err error) bool {
	return err != nil && Is(err, ErrRateLimited)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var forgeErr ForgeError
	if As(err, &forgeErr) {
		return forgeErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement ForgeError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var forgeErr ForgeError
	if As(err, &forgeErr) {
		return forgeErr.Severity()
	}

	return SeverityError
}

// IsSemanticError returns true if the error is a semantic error
// (NotFoundError, ValidationError, or TimeoutError).
func IsSemanticError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	var validation *ValidationError
	var timeout *TimeoutError

	return As(err, &notFound) || As(err, &validation) || As(err, &timeout)
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
