// Package domain provides the canonical error and request-context types
// shared by every stage of the dispatch pipeline.
package domain

import (
	"fmt"
	"net/http"
)

// Error names, one per failure category the pipeline can produce.
const (
	// ErrNameNotFound indicates no route claimed the request path.
	ErrNameNotFound = "NotFound"

	// ErrNameServiceNotFound indicates the action does not exist or is
	// not whitelisted on the matched route.
	ErrNameServiceNotFound = "ServiceNotFound"

	// ErrNameInvalidRequestBody indicates a body decoder failed.
	ErrNameInvalidRequestBody = "InvalidRequestBody"

	// ErrNameValidation indicates the merged parameters did not satisfy
	// the action's declared schema.
	ErrNameValidation = "ValidationError"

	// ErrNameForbidden indicates authorization yielded no identity.
	ErrNameForbidden = "Forbidden"

	// ErrNameInvalidResponseType indicates the invocation result could
	// not be encoded onto the response.
	ErrNameInvalidResponseType = "InvalidResponseType"

	// ErrNameServer indicates an uncaught or unexpected failure.
	ErrNameServer = "ServerError"
)

// GatewayError is the single error shape produced by the pipeline. Its
// JSON form is exactly the four fields below; the error mapper writes it
// verbatim as the response body.
type GatewayError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Data    any    `json:"data"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

// HTTPStatusCode returns the error's code when set, else 500.
func (e *GatewayError) HTTPStatusCode() int {
	if e.Code != 0 {
		return e.Code
	}
	return http.StatusInternalServerError
}

// WithData attaches structured detail to the error.
func (e *GatewayError) WithData(data any) *GatewayError {
	e.Data = data
	return e
}

// NewError creates a GatewayError with an explicit name and code.
func NewError(name, message string, code int) *GatewayError {
	return &GatewayError{Name: name, Message: message, Code: code}
}

// ErrNotFound creates the error for an unmatched request path.
func ErrNotFound(path string) *GatewayError {
	return NewError(ErrNameNotFound, "not found: "+path, http.StatusNotFound)
}

// ErrServiceNotFound creates the error for an unresolvable or
// non-whitelisted action. The data names the offending action.
func ErrServiceNotFound(action string) *GatewayError {
	return NewError(ErrNameServiceNotFound, fmt.Sprintf("service %q not found", action), http.StatusNotFound).
		WithData(map[string]any{"action": action})
}

// ErrInvalidRequestBody creates the error for a failed body decoder,
// carrying the raw offending payload.
func ErrInvalidRequestBody(message string, body []byte) *GatewayError {
	return NewError(ErrNameInvalidRequestBody, message, http.StatusBadRequest).
		WithData(map[string]any{"body": string(body)})
}

// ErrValidation creates the error for a parameter-schema mismatch.
func ErrValidation(message string, data any) *GatewayError {
	return NewError(ErrNameValidation, message, http.StatusUnprocessableEntity).WithData(data)
}

// ErrForbidden creates the error for a denied authorization.
func ErrForbidden(message string) *GatewayError {
	return NewError(ErrNameForbidden, message, http.StatusForbidden)
}

// ErrInvalidResponseType creates the error for an unencodable result.
func ErrInvalidResponseType(message string) *GatewayError {
	return NewError(ErrNameInvalidResponseType, message, http.StatusInternalServerError)
}

// ErrServer creates the error for an unexpected internal failure.
func ErrServer(message string) *GatewayError {
	return NewError(ErrNameServer, message, http.StatusInternalServerError)
}

// FromError coerces any error into a GatewayError. Errors the pipeline
// did not classify itself surface as ServerError.
func FromError(err error) *GatewayError {
	if ge, ok := err.(*GatewayError); ok {
		return ge
	}
	return ErrServer(err.Error())
}
