package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrUpstreamUnavailable matches every failure to reach or understand the
// retrieval proxy.
var ErrUpstreamUnavailable = errors.New("retrieval upstream unavailable")

// OperationErrorCode classifies retrieval failures.
type OperationErrorCode string

const (
	OperationErrorValidation      OperationErrorCode = "validation_failed"
	OperationErrorEncodeFailed    OperationErrorCode = "encode_failed"
	OperationErrorDecodeFailed    OperationErrorCode = "decode_failed"
	OperationErrorTransportFailed OperationErrorCode = "transport_failed"
	OperationErrorTimeout         OperationErrorCode = "timeout"
	OperationErrorQueryFailed     OperationErrorCode = "query_failed"
)

// OperationError describes a failed call to the retrieval proxy.
type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "retrieval operation failed"
	}
	msg := fmt.Sprintf("retrieval operation failed (op=%s code=%s status=%d)", e.Operation, e.Code, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports upstream failures as ErrUpstreamUnavailable. Validation errors
// are caller mistakes and do not match.
func (e *OperationError) Is(target error) bool {
	return e != nil && target == ErrUpstreamUnavailable && e.Code != OperationErrorValidation
}

func opErr(op string, code OperationErrorCode, msg string, cause error) error {
	return &OperationError{
		Code:      code,
		Operation: op,
		Message:   msg,
		Cause:     cause,
	}
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

// errorCode extracts the code for metrics labels.
func errorCode(err error) string {
	var oe *OperationError
	if errors.As(err, &oe) {
		return string(oe.Code)
	}
	return "unknown"
}
