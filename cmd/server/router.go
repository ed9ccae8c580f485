package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/careerdock/docflow-api/internal/api"
	apiMiddleware "github.com/careerdock/docflow-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware. Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.config.Auth.JWTSecret)
	documentHandler := api.NewDocumentHandler(app.documentService, app.logger)

	// Register routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Upload is the one mutating endpoint where accidental
			// duplicates are expensive, so it runs under the
			// idempotency coordinator.
			r.With(app.idempotencyCoordinator.Middleware).
				Post("/documents/upload", documentHandler.UploadDocument)

			r.Get("/documents", documentHandler.ListDocuments)
			r.Get("/documents/{id}", documentHandler.GetDocument)
			r.Get("/documents/{id}/status", documentHandler.GetDocumentStatus)
			r.Delete("/documents/{id}", documentHandler.DeleteDocument)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
