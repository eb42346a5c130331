package web

import (
	"errors"
	"net/http"

	"inventory-sync/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
// bodyLimit caps request bodies in bytes. metrics, when non-nil, is mounted at /metrics.
func NewHandler(svc app.ApplicationService, allowedOrigins string, bodyLimit int64, metrics http.Handler) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Health and metrics (public) ───────────────────────────────────────────
	r.Get("/api/health", h.health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	// ── POS synchronization ───────────────────────────────────────────────────
	r.Route("/api/sync", func(r chi.Router) {
		r.Use(RequestBodyLimit(bodyLimit))

		r.Post("/sales", h.syncSales)
		r.Get("/products/{storeId}", h.productsSince)
		r.Get("/schema", h.submissionSchema)
	})

	h.router = r
	return r
}

// health reports the reachability of each backing dependency.
// A degraded service answers 503 so load balancers stop routing to it.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	res := h.svc.Health(r.Context())
	if res.Status != "ok" {
		writeJSONStatus(w, res, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, res)
}

// isBodyTooLarge reports whether err came from the RequestBodyLimit middleware.
func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
