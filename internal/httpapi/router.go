package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter returns the routes without access logging. Tests use it
// directly to keep output quiet.
func NewRouter(opt Options) chi.Router {
	opt = opt.withDefaults()
	h := &handlers{opt: opt}

	r := chi.NewRouter()
	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", opt.Metrics.Handler())
	r.Get("/sub/{tier}/{protocol}", h.handleSub)
	r.Get("/api/summary", h.handleSummary)
	r.Post("/api/run", h.handleRun)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, notFound("no such route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, requestAppError("METHOD_NOT_ALLOWED", "method not allowed", ""))
	})
	return r
}
