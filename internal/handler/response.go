package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"rentdesk/internal/model"
	"rentdesk/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	var lockedErr *model.LockedError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.As(err, &lockedErr) {
		// Remaining time is surfaced deliberately; the identifier is
		// already burned by the failures that locked it.
		status = http.StatusLocked
		body.Code = "ACCOUNT_LOCKED"
		body.Message = "Too many failed attempts, try again later"
		body.Details = "retry_after_seconds=" + strconv.FormatInt(lockedErr.RemainingSeconds(), 10)
		w.Header().Set("Retry-After", strconv.FormatInt(lockedErr.RemainingSeconds(), 10))
	} else if errors.Is(err, model.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid credentials"
	} else if errors.Is(err, model.ErrTokenExpired) ||
		errors.Is(err, model.ErrTokenRevoked) ||
		errors.Is(err, model.ErrTokenNotFound) ||
		errors.Is(err, model.ErrTokenMalformed) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid or expired token"
	} else if errors.Is(err, model.ErrCSRFMismatch) {
		status = http.StatusForbidden
		body.Code = "CSRF_MISMATCH"
		body.Message = "Missing or invalid csrf token"
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "User not found"
	} else if errors.Is(err, model.ErrTenantNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Tenant profile not found"
	} else if errors.Is(err, model.ErrUserAlreadyExists) {
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "User already exists"
	} else if errors.Is(err, model.ErrInvalidRole) || errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
	} else if errors.Is(err, model.ErrEncryptionUnavailable) {
		status = http.StatusInternalServerError
		body.Code = "ENCRYPTION_UNAVAILABLE"
		body.Message = "Sensitive fields cannot be processed right now"
	} else if errors.Is(err, model.ErrUnauthorized) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrForbidden) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
