package ideogram

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBadRequest   = errors.New("ideogram: bad request")
	ErrUnauthorized = errors.New("ideogram: invalid api key")
	ErrValidation   = errors.New("ideogram: request failed validation")
	ErrRateLimited  = errors.New("ideogram: rate limited")
	ErrUpstream     = errors.New("ideogram: upstream failure")
)

// APIError 上游返回的错误，Unwrap 到上面的哨兵错误之一
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%v: %s", e.kind, e.Message)
	}
	return fmt.Sprintf("%v (status %d): %s", e.kind, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// Code 写入 generation.error_code 的短标识
func (e *APIError) Code() string {
	switch e.kind {
	case ErrBadRequest:
		return "bad_request"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrValidation:
		return "validation_failed"
	case ErrRateLimited:
		return "rate_limited"
	default:
		return "upstream_error"
	}
}

// NewAPIError 按上游 HTTP 状态归类错误
func NewAPIError(status int, message string) *APIError {
	var kind error
	switch status {
	case http.StatusBadRequest:
		kind = ErrBadRequest
	case http.StatusUnauthorized:
		kind = ErrUnauthorized
	case http.StatusUnprocessableEntity:
		kind = ErrValidation
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	default:
		kind = ErrUpstream
	}
	return &APIError{StatusCode: status, Message: message, kind: kind}
}

func upstreamError(message string) *APIError {
	return &APIError{Message: message, kind: ErrUpstream}
}
