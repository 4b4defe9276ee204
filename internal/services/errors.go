package services

import (
	"context"
	"errors"
	"log"
	"net/http"

	goahttp "goa.design/goa/v3/http"
	goa "goa.design/goa/v3/pkg"

	apperrors "grantdesk/pkg/errors"
)

// Error names carried in the "name" field of error responses and the goa-error header
const (
	ErrNameBadRequest   = "bad_request"
	ErrNameUnauthorized = "unauthorized"
	ErrNameForbidden    = "forbidden"
	ErrNameNotFound     = "not_found"
	ErrNamePersistence  = "persistence_error"
	ErrNameInternal     = "internal_error"
)

var statusByName = map[string]int{
	ErrNameBadRequest:   http.StatusBadRequest,
	ErrNameUnauthorized: http.StatusUnauthorized,
	ErrNameForbidden:    http.StatusForbidden,
	ErrNameNotFound:     http.StatusNotFound,
	ErrNamePersistence:  http.StatusServiceUnavailable,
	ErrNameInternal:     http.StatusInternalServerError,
}

// MakeBadRequest builds a bad_request service error
func MakeBadRequest(err error) *goa.ServiceError {
	return goa.NewServiceError(err, ErrNameBadRequest, false, false, false)
}

// MakeUnauthorized builds an unauthorized service error
func MakeUnauthorized(err error) *goa.ServiceError {
	return goa.NewServiceError(err, ErrNameUnauthorized, false, false, false)
}

// MakeForbidden builds a forbidden service error
func MakeForbidden(err error) *goa.ServiceError {
	return goa.NewServiceError(err, ErrNameForbidden, false, false, false)
}

// MakeNotFound builds a not_found service error
func MakeNotFound(err error) *goa.ServiceError {
	return goa.NewServiceError(err, ErrNameNotFound, false, false, false)
}

// toServiceError classifies err into a goa service error and the HTTP status it maps to
func toServiceError(err error) (*goa.ServiceError, int) {
	var serr *goa.ServiceError
	if errors.As(err, &serr) {
		if status, ok := statusByName[serr.Name]; ok {
			return serr, status
		}
		return serr, http.StatusInternalServerError
	}

	var appErr *apperrors.AppError
	message := err
	if errors.As(err, &appErr) {
		message = errors.New(appErr.Message)
	}

	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeBadRequest:
		return MakeBadRequest(message), http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return MakeUnauthorized(message), http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return MakeForbidden(message), http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return MakeNotFound(message), http.StatusNotFound
	case apperrors.ErrCodePersistence:
		return goa.NewServiceError(message, ErrNamePersistence, false, true, false), http.StatusServiceUnavailable
	default:
		return goa.NewServiceError(errors.New("internal server error"), ErrNameInternal, false, false, true), http.StatusInternalServerError
	}
}

// writeError encodes err as a goa error response
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	serr, status := toServiceError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s: %v", serr.Name, err)
	}

	enc := goahttp.ResponseEncoder(ctx, w)
	w.Header().Set("goa-error", serr.Name)
	w.WriteHeader(status)
	if encErr := enc.Encode(goahttp.NewErrorResponse(ctx, serr)); encErr != nil {
		log.Printf("[API] Failed to encode error response: %v", encErr)
	}
}

// writeJSON encodes body with the given status
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	enc := goahttp.ResponseEncoder(ctx, w)
	w.WriteHeader(status)
	if err := enc.Encode(body); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

// decodeBody decodes the request body into v
func decodeBody(r *http.Request, v interface{}) error {
	if err := goahttp.RequestDecoder(r).Decode(v); err != nil {
		return MakeBadRequest(errors.New("invalid request body"))
	}
	return nil
}
