package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zsims/atscale/internal/api"
	apiMiddleware "github.com/zsims/atscale/internal/api/middleware"
)

// setupRouter creates the router with every route and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	resizeHandler := api.NewResizeHandler(app.dispatcher, app.config.Server.PublicBaseURL, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/new-image", resizeHandler.NewImage)
		r.Post("/resize/{jobID}", resizeHandler.StartResize)
		r.Get("/status/{jobID}", resizeHandler.Status)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})
	r.Handle("/metrics", app.metrics.Handler())

	return r
}
