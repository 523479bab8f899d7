package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/brogergvhs/mangamirror/internal/catalog"
	"github.com/brogergvhs/mangamirror/internal/fetch"
	"github.com/brogergvhs/mangamirror/internal/ingest"
	"github.com/brogergvhs/mangamirror/internal/mirror"
	"github.com/brogergvhs/mangamirror/internal/providers/generic"
)

// AppError is an error with a client-safe message and the status it maps to.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"error"`
	HTTPStatus int    `json:"-"`
	Cause      error  `json:"-"`
	// Preview is whatever was extracted before a scrape failed.
	Preview any `json:"preview,omitempty"`
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Cause }

func BadRequest(msg string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: msg, HTTPStatus: http.StatusBadRequest}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, HTTPStatus: http.StatusUnauthorized}
}

func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

func Internal(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// fromError classifies errors coming out of the ingest and mirror layers.
// Scrape and fetch failures keep their message since operators act on it.
func fromError(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}

	mk := func(code string, status int) *AppError {
		return &AppError{Code: code, Message: err.Error(), HTTPStatus: status, Cause: err}
	}

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return mk("NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, ingest.ErrURLNotAllowed):
		return mk("URL_NOT_ALLOWED", http.StatusBadRequest)
	case errors.Is(err, ingest.ErrNoImages), errors.Is(err, ingest.ErrNoComic):
		return mk("INVALID_ARCHIVE", http.StatusBadRequest)
	case errors.Is(err, mirror.ErrNoPagesFound):
		return mk("NO_PAGES_FOUND", http.StatusUnprocessableEntity)
	case errors.Is(err, generic.ErrNoChaptersFound):
		return mk("NO_CHAPTERS_FOUND", http.StatusUnprocessableEntity)
	case fetch.IsBlocked(err):
		return mk("SOURCE_BLOCKED", http.StatusBadGateway)
	case fetch.KindOf(err) != "":
		return mk("FETCH_FAILED", http.StatusBadGateway)
	case errors.Is(err, context.DeadlineExceeded):
		return mk("TIMEOUT", http.StatusGatewayTimeout)
	}

	return Internal(err)
}
