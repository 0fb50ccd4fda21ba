package http

import (
	"net/http"

	"github.com/tuanvumaihuynh/storefront/internal/apperr"
	"github.com/tuanvumaihuynh/storefront/internal/storage/db"
)

type HealthResponse struct {
	Success bool `json:"success"`
}

type healthHandler struct {
	checker db.HealthChecker
}

func newHealthHandler(checker db.HealthChecker) *healthHandler {
	return &healthHandler{checker: checker}
}

func (h *healthHandler) Check(w http.ResponseWriter, r *http.Request, _ decoder) error {
	if ok, err := h.checker.IsHealthy(r.Context()); err != nil || !ok {
		return apperr.UnavailableErr.WrapParent(err)
	}

	writeJSON(w, http.StatusOK, HealthResponse{Success: true})
	return nil
}
