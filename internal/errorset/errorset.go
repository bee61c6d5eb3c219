// Package errorset provides the VIS error taxonomy: the {number, reason,
// message} triple carried in every action and subscription error frame, plus
// an HTTP rendering for the ambient HTTP surface.
package errorset

import (
	"fmt"
	"net/http"
)

// AppError is the error shape carried on both the WebSocket and HTTP
// surfaces: a canonical reason token, its HTTP-equivalent status number, a
// human message, and optional structured details for logging.
type AppError struct {
	// Reason is the short machine-readable token from the VIS error table,
	// e.g. "invalid_path", "filter_invalid".
	Reason string `json:"reason"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Number is the HTTP-equivalent status code carried on the wire.
	Number int `json:"number"`

	// Details carries additional context for logging; omitted from the
	// wire error body.
	Details string `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Reason, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// ErrorResponse is the wire shape of the "error" field on an action or
// subscription error frame.
type ErrorResponse struct {
	Number  int    `json:"number"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ToResponse renders the error body used on the wire.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Number: e.Number, Reason: e.Reason, Message: e.Message}
}

// knownError is a canonical (status, reason, message) triple from the VIS
// error table, mirrored one-for-one onto a constructor below.
type knownError struct {
	status  int
	reason  string
	message string
}

func (k knownError) withDetails(details string) *AppError {
	return &AppError{Number: k.status, Reason: k.reason, Message: k.message, Details: details}
}

func (k knownError) new() *AppError {
	return k.withDetails("")
}

var (
	notModified = knownError{http.StatusNotModified, "not_modified",
		"No changes have been made by the server."}

	badRequest = knownError{http.StatusBadRequest, "bad_request",
		"The server is unable to fulfill the client request because the request is malformed."}

	filterInvalid = knownError{http.StatusBadRequest, "filter_invalid",
		"Filter requested on non-primitive type."}

	readOnly = knownError{http.StatusUnauthorized, "read_only",
		"The desired signal cannot be set since it is a read only signal."}

	invalidPath = knownError{http.StatusNotFound, "invalid_path",
		"The specified data path does not exist."}

	invalidSubscriptionID = knownError{http.StatusNotFound, "invalid_subscriptionId",
		"The specified subscription was not found."}

	notAcceptable = knownError{http.StatusNotAcceptable, "not_acceptable",
		"The server is unable to generate content that is acceptable to the client."}

	tooManyRequests = knownError{http.StatusTooManyRequests, "too_many_requests",
		"The client has sent the server too many requests in a given amount of time."}

	badGateway = knownError{http.StatusBadGateway, "bad_gateway",
		"The server was acting as a gateway or proxy and received an invalid response from an upstream server."}

	serviceUnavailable = knownError{http.StatusServiceUnavailable, "service_unavailable",
		"The server is currently unable to handle the request due to a temporary overload or scheduled maintenance."}

	gatewayTimeout = knownError{http.StatusGatewayTimeout, "gateway_timeout",
		"The server did not receive a timely response from an upstream server it needed to access in order to complete the request."}

	notImplemented = knownError{http.StatusNotImplemented, "not_implemented",
		"This action is not implemented by the server."}
)

// NotModified indicates the server made no changes on behalf of the request.
func NotModified() *AppError { return notModified.new() }

// BadRequest indicates a malformed request, typically a decode failure.
func BadRequest(details string) *AppError { return badRequest.withDetails(details) }

// FilterInvalid indicates a filter gate was evaluated against a
// non-primitive or otherwise incompatible value.
func FilterInvalid(details string) *AppError { return filterInvalid.withDetails(details) }

// ReadOnly indicates a set request targeted a signal that cannot be
// written. Set-handlers return it to refuse a write; a path with no
// registered set-handler gets InvalidPath instead.
func ReadOnly(path string) *AppError { return readOnly.withDetails(path) }

// InvalidPath indicates the requested path has no cached value and (for
// set) no registered handler.
func InvalidPath(path string) *AppError { return invalidPath.withDetails(path) }

// InvalidSubscriptionID indicates an unsubscribe referenced a subscription
// id the requesting session does not own, or that does not exist.
func InvalidSubscriptionID(id string) *AppError { return invalidSubscriptionID.withDetails(id) }

// NotAcceptable indicates the server cannot produce an acceptable response.
func NotAcceptable() *AppError { return notAcceptable.new() }

// TooManyRequests indicates the caller exceeded a rate limit.
func TooManyRequests() *AppError { return tooManyRequests.new() }

// BadGateway indicates an upstream producer returned an invalid response.
func BadGateway(details string) *AppError { return badGateway.withDetails(details) }

// ServiceUnavailable indicates a set-handler failed to accept a value, or
// the server is otherwise temporarily unable to serve the request.
func ServiceUnavailable(details string) *AppError { return serviceUnavailable.withDetails(details) }

// GatewayTimeout indicates an upstream producer did not respond in time.
func GatewayTimeout() *AppError { return gatewayTimeout.new() }

// NotImplemented indicates an unsupported action (authorize, getMetadata).
func NotImplemented(action string) *AppError { return notImplemented.withDetails(action) }

// Internal wraps an unexpected error as a generic internal failure. Used
// only for encode failures and other conditions the wire protocol has no
// dedicated reason token for.
func Internal(err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &AppError{
		Number:  http.StatusInternalServerError,
		Reason:  "internal_error",
		Message: "An unexpected internal error occurred.",
		Details: details,
	}
}
