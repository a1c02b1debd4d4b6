package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"llmbridge/internal/handlers"
	"llmbridge/internal/metrics"
	"llmbridge/internal/middleware"
)

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, generateHandler *handlers.GenerateHandler) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())                // panic recovery
	r.Use(middleware.Timeout(120 * time.Second)) // generation calls are slow
	r.Use(middleware.MaxBodySize(4 * 1024 * 1024))

	// health check, polled by the dispatcher during proxy startup
	r.Get("/health", generateHandler.Health)

	r.Handle("/metrics", metrics.Handler())

	// Generation paths carry the model name, so match every POST and let
	// the handler reject non-generation paths with 404.
	r.Post("/*", generateHandler.Generate)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		if handlers.IsGenerationPath(r.URL.Path) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = w.Write([]byte(`{"error":{"code":405,"message":"method not allowed","status":"METHOD_NOT_ALLOWED"}}`))
			return
		}
		writeNotFound(w)
	})
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found","status":"NOT_FOUND"}}`))
}
