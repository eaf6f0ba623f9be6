package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrUnsupportedModel    = errors.New("unsupported model")
	ErrMissingParameter    = errors.New("missing required parameter")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrMissingCredentials  = errors.New("missing credentials")
	ErrSubmissionRejected  = errors.New("submission rejected")
	ErrTransport           = errors.New("transport error")
	ErrVendorFailure       = errors.New("vendor reported failure")
	ErrTimeout             = errors.New("polling timed out")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrDuplicateOperation  = errors.New("duplicate operation")
	ErrQueueNotConfigured  = errors.New("task queue not configured")
	ErrStoreNotConfigured  = errors.New("task store not configured")
	ErrArtifactNameInvalid = errors.New("invalid artifact name")
)

// Error decorates one of the sentinel kinds above with the context needed to
// diagnose a failed job. errors.Is matches both Kind and the wrapped cause.
type Error struct {
	Kind       error
	Provider   string
	Model      string
	JobID      string
	Key        string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " %q", e.Key)
	}
	if e.Model != "" && errors.Is(e.Kind, ErrUnsupportedModel) {
		fmt.Fprintf(&b, " %q", e.Model)
	}
	if e.JobID != "" {
		fmt.Fprintf(&b, " (job %s)", e.JobID)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// VendorMessage returns the raw vendor message carried by err, if any.
func VendorMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// HTTPStatus maps an error kind onto the status code the front door replies with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrProviderNotFound), errors.Is(err, ErrArtifactNameInvalid):
		return http.StatusNotFound
	case errors.Is(err, ErrUnsupportedModel), errors.Is(err, ErrMissingParameter), errors.Is(err, ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrSubmissionRejected), errors.Is(err, ErrVendorFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrDuplicateOperation):
		return http.StatusConflict
	case errors.Is(err, ErrMissingCredentials), errors.Is(err, ErrQueueNotConfigured), errors.Is(err, ErrStoreNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns a short machine readable code for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrArtifactNameInvalid):
		return "not_found"
	case errors.Is(err, ErrProviderNotFound):
		return "provider_not_found"
	case errors.Is(err, ErrUnsupportedModel):
		return "unsupported_model"
	case errors.Is(err, ErrMissingParameter):
		return "missing_parameter"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, ErrSubmissionRejected):
		return "submission_rejected"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	case errors.Is(err, ErrVendorFailure):
		return "vendor_failure"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrDuplicateOperation):
		return "duplicate_operation"
	case errors.Is(err, ErrQueueNotConfigured):
		return "queue_not_configured"
	case errors.Is(err, ErrStoreNotConfigured):
		return "store_not_configured"
	default:
		return "internal"
	}
}
