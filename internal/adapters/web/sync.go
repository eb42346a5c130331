package web

import (
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"inventory-sync/internal/app"
	"inventory-sync/internal/core"

	"github.com/go-chi/chi/v5"
)

// syncSales handles POST /api/sync/sales.
// The body is a JSON array of sales and the response an array of results in the
// same order. Entries that fail validation are reported in their result and never
// fail the request as a whole. Batch tallies travel in X-Sync-* headers.
func (h *Handler) syncSales(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		if isBodyTooLarge(err) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, r, "failed to read request body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	batch, err := core.DecodeBatch(body)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.SyncSales(r.Context(), batch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	results := result.Results
	if results == nil {
		results = []core.SyncResult{}
	}
	w.Header().Set("X-Sync-Succeeded", strconv.Itoa(result.Succeeded))
	w.Header().Set("X-Sync-Skipped", strconv.Itoa(result.Skipped))
	w.Header().Set("X-Sync-Failed", strconv.Itoa(result.Failed))
	writeJSON(w, results)
}

// productsSince handles GET /api/sync/products/{storeId}?last_update=.
// The body is the product array; X-Server-Time carries the cutoff the register
// sends as last_update on its next pull.
func (h *Handler) productsSince(w http.ResponseWriter, r *http.Request) {
	req := app.ProductsSinceRequest{
		StoreID: chi.URLParam(r, "storeId"),
		Since:   r.URL.Query().Get("last_update"),
	}

	result, err := h.svc.ProductsSince(r.Context(), req)
	if err != nil {
		if !isClientError(err) {
			log.Printf("[web] ERROR: product pull for store %s failed: %v", req.StoreID, err)
		}
		writeServiceError(w, r, err)
		return
	}

	products := result.Products
	if products == nil {
		products = []app.CatalogProduct{}
	}
	w.Header().Set("X-Server-Time", result.ServerTime.UTC().Format(time.RFC3339Nano))
	writeJSON(w, products)
}

// submissionSchema handles GET /api/sync/schema.
func (h *Handler) submissionSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.SubmissionSchema())
}
