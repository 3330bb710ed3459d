package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/entitlekit/pkg/edition"
	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/feature"
	"github.com/dmitrymomot/entitlekit/pkg/statemachine"
	"github.com/dmitrymomot/entitlekit/pkg/subscription"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// HTTPError pairs a status code with a stable error code.
type HTTPError struct {
	Status int
	Code   string
}

func (e HTTPError) Error() string {
	return e.Code
}

var (
	ErrBadRequest    = HTTPError{Status: http.StatusBadRequest, Code: "bad_request"}
	ErrNotFound      = HTTPError{Status: http.StatusNotFound, Code: "not_found"}
	ErrForbidden     = HTTPError{Status: http.StatusForbidden, Code: "forbidden"}
	ErrConflict      = HTTPError{Status: http.StatusConflict, Code: "conflict"}
	ErrUnprocessable = HTTPError{Status: http.StatusUnprocessableEntity, Code: "unprocessable_entity"}
	ErrInternal      = HTTPError{Status: http.StatusInternalServerError, Code: "internal_error"}
)

// errorFor maps domain errors onto the HTTP taxonomy:
// not-found 404, invalid input 422, policy conflicts 409 or 403.
func errorFor(err error) HTTPError {
	var httpErr HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, tenant.ErrTenantNotFound),
		errors.Is(err, edition.ErrEditionNotFound),
		errors.Is(err, feature.ErrUnknownFeatureKey):
		return ErrNotFound
	case errors.Is(err, tenant.ErrInvalidIdentifier):
		return ErrBadRequest
	case errors.Is(err, feature.ErrInvalidFeatureValue),
		errors.Is(err, entitlement.ErrTypeMismatch),
		errors.Is(err, subscription.ErrInvalidSubscriptionEndDate),
		errors.Is(err, subscription.ErrInvalidTrialEndDate),
		errors.Is(err, subscription.ErrInvalidEffectiveDate),
		errors.Is(err, subscription.ErrInvalidSuspensionReason),
		errors.Is(err, subscription.ErrInvalidMode):
		return ErrUnprocessable
	case errors.Is(err, statemachine.ErrInvalidTransition),
		errors.Is(err, subscription.ErrReactivationNotAllowed),
		errors.Is(err, subscription.ErrScheduledChangeNotSupported):
		return ErrConflict
	case errors.Is(err, entitlement.ErrFeatureDisabled),
		errors.Is(err, subscription.ErrSubscriptionInactive):
		return ErrForbidden
	}
	return ErrInternal
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Data: data})
}
