package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Error codes reported by the gateway.
const (
	CodeUnauthorized   = "unauthorized"
	CodeRateLimited    = "rate_limited"
	CodeUnavailable    = "unavailable"
	CodeInvalidRequest = "invalid_request"
	CodeBadResponse    = "bad_response"
	CodeCanceled       = "canceled"
)

// GatewayError is a failed gateway call with a stable code.
type GatewayError struct {
	Op   string
	Code string
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("llm %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ErrorCode returns the stable code of the failure.
func (e *GatewayError) ErrorCode() string { return e.Code }

// HTTPStatus maps the code to the status a handler should answer with.
func (e *GatewayError) HTTPStatus() int {
	switch e.Code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeBadResponse:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func badResponse(op string, err error) *GatewayError {
	return &GatewayError{Op: op, Code: CodeBadResponse, Err: err}
}

// classify turns a client error into a GatewayError.
func classify(op string, err error) *GatewayError {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}

	code := CodeUnavailable
	switch {
	case errors.Is(err, context.Canceled):
		code = CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = CodeUnavailable
	default:
		var apiErr *openai.APIError
		var reqErr *openai.RequestError
		if errors.As(err, &apiErr) {
			code = codeForStatus(apiErr.HTTPStatusCode)
		} else if errors.As(err, &reqErr) {
			code = codeForStatus(reqErr.HTTPStatusCode)
		}
	}
	return &GatewayError{Op: op, Code: code, Err: err}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeUnauthorized
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return CodeInvalidRequest
	default:
		return CodeUnavailable
	}
}
