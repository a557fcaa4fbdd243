package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zsims/atscale/internal/api/shared"
	"github.com/zsims/atscale/internal/platform/logger"
	"github.com/zsims/atscale/internal/service"
)

// ResizeHandler serves the resize job endpoints.
type ResizeHandler struct {
	dispatcher    service.Dispatcher
	publicBaseURL string
	logger        *slog.Logger
}

// NewResizeHandler creates a ResizeHandler. publicBaseURL may be empty, in
// which case endpoint URLs are derived from each request.
func NewResizeHandler(dispatcher service.Dispatcher, publicBaseURL string, log *slog.Logger) *ResizeHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ResizeHandler{
		dispatcher:    dispatcher,
		publicBaseURL: publicBaseURL,
		logger:        log.With(slog.String("component", "resize_handler")),
	}
}

// NewImage handles POST /api/new-image.
func (h *ResizeHandler) NewImage(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req NewImageRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		log.Debug("invalid new-image body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	result, err := h.dispatcher.NewJob(r.Context(), req.MimeType)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, NewImageResponse{
		UploadEndpoint: result.UploadURL,
		ResizeEndpoint: baseURL(r, h.publicBaseURL) + "/api/resize/" + result.JobID,
	})
}

// StartResize handles POST /api/resize/{jobID}.
func (h *ResizeHandler) StartResize(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	jobID, err := getPathJobID(r)
	if err != nil {
		log.Debug("invalid job id", slog.String("value", chi.URLParam(r, jobIDParam)))
		HandleAPIError(w, r, err, "Invalid job ID")
		return
	}

	if err := h.dispatcher.StartResize(r.Context(), jobID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, ResizeResponse{
		StatusEndpoint: baseURL(r, h.publicBaseURL) + "/api/status/" + jobID,
	})
}

// Status handles GET /api/status/{jobID}. A malformed ID is reported as an
// unknown job.
func (h *ResizeHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.dispatcher.QueryStatus(r.Context(), chi.URLParam(r, jobIDParam))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := StatusResponse{ResizeStatus: job.Status.String()}
	if job.IsDone() {
		finalURL := job.FinalURL
		resp.FinalURL = &finalURL
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
