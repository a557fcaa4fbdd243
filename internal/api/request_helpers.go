package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/zsims/atscale/internal/domain"
)

// jobIDParam is the chi path parameter carrying the job ID.
const jobIDParam = "jobID"

// getPathJobID extracts and validates the job ID path parameter.
func getPathJobID(r *http.Request) (string, error) {
	pathParam := chi.URLParam(r, jobIDParam)
	if pathParam == "" {
		return "", domain.NewValidationError(jobIDParam, "is required", domain.ErrValidation)
	}

	id, err := domain.ParseJobID(pathParam)
	if err != nil {
		return "", domain.NewValidationError(jobIDParam, "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

// baseURL returns the scheme and host clients should use to reach this
// server. A configured public base URL wins over the request.
func baseURL(r *http.Request, publicBaseURL string) string {
	if publicBaseURL != "" {
		return strings.TrimRight(publicBaseURL, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}
