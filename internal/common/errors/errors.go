// Package errors provides standardized error handling for the sync pass and its BPMN job.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Run-level errors abort a pass before any create call; record-level errors are collected.
const (
	ErrCodeUpstreamFetchFailed   ErrorCode = "UPSTREAM_FETCH_FAILED"
	ErrCodeDownstreamQueryFailed ErrorCode = "DOWNSTREAM_QUERY_FAILED"

	ErrCodeAssetResolutionFailed  ErrorCode = "ASSET_RESOLUTION_FAILED"
	ErrCodePayloadBuildFailed     ErrorCode = "PAYLOAD_BUILD_FAILED"
	ErrCodeDownstreamCreateFailed ErrorCode = "DOWNSTREAM_CREATE_FAILED"

	ErrCodeRunLocked          ErrorCode = "SYNC_RUN_LOCKED"
	ErrCodeConfigInvalid      ErrorCode = "CONFIG_INVALID"
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUpstreamFetchError aborts the run: the feed answered with a failure or could not be read.
func NewUpstreamFetchError(page int, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamFetchFailed,
		Message:   "Inspection feed request failed",
		Details:   fmt.Sprintf("page: %d, error: %s", page, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"page": page},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDownstreamQueryError aborts the run before any create call.
func NewDownstreamQueryError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDownstreamQueryFailed,
		Message:   "Maintenance system query failed",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"collection": collection},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAssetResolutionError marks a single report whose vehicle or trailer has no downstream asset.
func NewAssetResolutionError(reportID int64, identifier string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssetResolutionFailed,
		Message:   "No downstream asset matches the reported vehicle",
		Details:   fmt.Sprintf("reportId: %d, identifier: %q", reportID, identifier),
		Retryable: false,
		Metadata:  map[string]interface{}{"reportId": reportID},
		Timestamp: time.Now().UTC(),
	}
}

// NewPayloadBuildError marks a single report that could not be turned into a payload.
func NewPayloadBuildError(reportID int64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadBuildFailed,
		Message:   "Failed to build work item payload",
		Details:   fmt.Sprintf("reportId: %d, error: %s", reportID, err.Error()),
		Retryable: false,
		Metadata:  map[string]interface{}{"reportId": reportID},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDownstreamCreateError marks a single record the maintenance system refused or never received.
func NewDownstreamCreateError(collection string, reportID int64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDownstreamCreateFailed,
		Message:   "Failed to create downstream record",
		Details:   fmt.Sprintf("collection: %s, reportId: %d, error: %s", collection, reportID, err.Error()),
		Retryable: false,
		Metadata:  map[string]interface{}{"collection": collection, "reportId": reportID},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewRunLockedError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunLocked,
		Message:   "Another sync pass is running",
		Details:   fmt.Sprintf("lockKey: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewConfigInvalidError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   "Invalid sync configuration",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInputParsingError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputParsingFailed,
		Message:   "Failed to parse job variables",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeUpstreamFetchFailed,
		ErrCodeDownstreamQueryFailed:
		return 2 // a later attempt re-reads the watermark, so retries are safe

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// AsStandardError unwraps err to a StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandardError(err).Code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsRunAbort reports whether the code aborts a whole pass rather than a single report.
func IsRunAbort(code ErrorCode) bool {
	return code == ErrCodeUpstreamFetchFailed || code == ErrCodeDownstreamQueryFailed
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "UPSTREAM"):
		return "UPSTREAM"
	case strings.HasPrefix(codeStr, "DOWNSTREAM"):
		return "DOWNSTREAM"
	case code == ErrCodeAssetResolutionFailed || code == ErrCodePayloadBuildFailed:
		return "CLASSIFICATION"
	case strings.Contains(codeStr, "CONFIG") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
