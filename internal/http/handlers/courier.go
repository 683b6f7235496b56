package handlers

import (
	"net/http"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// CourierHandler accepts courier telemetry.
type CourierHandler struct {
	tracker LocationIngester
	logger  logx.Logger
}

// NewCourierHandler creates a new CourierHandler.
func NewCourierHandler(t LocationIngester, logger logx.Logger) *CourierHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &CourierHandler{tracker: t, logger: logger}
}

// Location handles POST /couriers/location.
func (h *CourierHandler) Location(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r, domain.RoleCourier)
	if !ok {
		return
	}
	var req locationRequest
	if !decodeJSON(h.logger, w, r, &req, false) {
		return
	}
	p, ok := req.toPoint()
	if !ok || !p.Valid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid coordinates")
		return
	}

	if err := h.tracker.Ingest(r.Context(), actor.ID, p); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
