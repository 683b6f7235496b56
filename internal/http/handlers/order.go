package handlers

import (
	"net/http"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// OrderHandler exposes order dispatch and lifecycle actions.
type OrderHandler struct {
	dispatcher Dispatcher
	assigner   Assigner
	lifecycle  Lifecycle
	logger     logx.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(d Dispatcher, a Assigner, l Lifecycle, logger logx.Logger) *OrderHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &OrderHandler{dispatcher: d, assigner: a, lifecycle: l, logger: logger}
}

func (h *OrderHandler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

// Dispatch handles POST /orders/{id}/dispatch. The search runs in the background.
func (h *OrderHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(h.logger, w, r, domain.RoleCustomer, domain.RoleSystem); !ok {
		return
	}
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req dispatchRequest
	if !decodeJSON(h.logger, w, r, &req, true) {
		return
	}
	if req.ShopID < 0 {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid shop_id")
		return
	}

	if err := h.dispatcher.Start(r.Context(), id, req.ShopID); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusAccepted, dispatchResponse{OrderID: id, Status: domain.OrderSearching})
}

// Accept handles POST /orders/{id}/accept.
func (h *OrderHandler) Accept(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r, domain.RoleCourier)
	if !ok {
		return
	}
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	res, err := h.assigner.Accept(r.Context(), id, actor.ID)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignToResponse(res))
}

// Reject handles POST /orders/{id}/reject.
func (h *OrderHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r, domain.RoleCourier)
	if !ok {
		return
	}
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	if err := h.assigner.Reject(r.Context(), id, actor.ID); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Direction handles POST /orders/{id}/direction.
func (h *OrderHandler) Direction(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r, domain.RoleCourier)
	if !ok {
		return
	}
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req directionRequest
	if !decodeJSON(h.logger, w, r, &req, false) {
		return
	}
	if !req.Direction.Valid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid direction")
		return
	}

	if err := h.lifecycle.UpdateDirection(r.Context(), id, actor.ID, req.Direction); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, directionResponse{OrderID: id, Direction: req.Direction})
}

// Cancel handles POST /orders/{id}/cancel for any authenticated party.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r)
	if !ok {
		return
	}
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if !decodeJSON(h.logger, w, r, &req, true) {
		return
	}

	if err := h.lifecycle.Cancel(r.Context(), id, actor, req.Reason); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /orders/{id}/complete.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r, domain.RoleCustomer)
	if !ok {
		return
	}
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req ratingRequest
	if !decodeJSON(h.logger, w, r, &req, true) {
		return
	}

	if err := h.lifecycle.Complete(r.Context(), id, actor.ID, req.Rating); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandOver handles POST /orders/{id}/hand-over.
func (h *OrderHandler) HandOver(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(h.logger, w, r, domain.RoleCourier)
	if !ok {
		return
	}
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req ratingRequest
	if !decodeJSON(h.logger, w, r, &req, true) {
		return
	}

	if err := h.lifecycle.HandOver(r.Context(), id, actor.ID, req.Rating); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
