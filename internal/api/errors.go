// Package api is the HTTP client for the freta REST service: request
// execution with bearer credentials, error classification, cursor
// pagination, job monitoring and the typed endpoint surface.
package api

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusUnavailableForLegalReasons is returned by the service on any call
// until the current terms of service are accepted.
const StatusUnavailableForLegalReasons = http.StatusUnavailableForLegalReasons

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, api.ErrNotFound) to check.
var (
	ErrBadRequest       = errors.New("api: bad request")
	ErrUnauthorized     = errors.New("api: unauthorized")
	ErrForbidden        = errors.New("api: forbidden")
	ErrNotFound         = errors.New("api: not found")
	ErrConflict         = errors.New("api: conflict")
	ErrThrottled        = errors.New("api: throttled")
	ErrServerError      = errors.New("api: server error")
	ErrUnexpectedStatus = errors.New("api: unexpected status")
)

var (
	ErrTermsNotAccepted  = errors.New("api: terms of service not accepted")
	ErrUnsupportedFormat = errors.New("api: unsupported image format")
	ErrAnalysisFailed    = errors.New("api: analysis failed")
	ErrEmptyResponse     = errors.New("api: empty response")
)

// RequestError is a non-2xx response other than 451. Body is the raw
// response text.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error // sentinel, for errors.Is()
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("api: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// TermsError carries the terms text the user must accept before the
// service answers any other call.
type TermsError struct {
	Terms string
}

func (e *TermsError) Error() string {
	return "api: terms of service must be accepted before using the service"
}

func (e *TermsError) Unwrap() error {
	return ErrTermsNotAccepted
}

// AnalysisFailedError reports a job that reached the failed state. Message
// is the service-provided reason, verbatim.
type AnalysisFailedError struct {
	ImageID ImageID
	Message string
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("api: analysis of image %s failed: %s", e.ImageID, e.Message)
}

func (e *AnalysisFailedError) Unwrap() error {
	return ErrAnalysisFailed
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusOK && code < http.StatusMultipleChoices {
			return nil
		}

		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrUnexpectedStatus
	}
}
