package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chappapp/chapp/internal/services"
	"github.com/chappapp/chapp/internal/tags"
)

type customerOrdersRequest struct {
	CustomerID   string `json:"customerId" validate:"required"`
	ToNextPage   bool   `json:"toNextPage"`
	Cursor       string `json:"cursor"`
	DeliveryDate string `json:"deliveryDate" validate:"required"`
}

// CustomerOrders serves one page of the signed-in customer's vendor
// order history to the storefront widget. The route sits behind
// RequireProxySignature, so the shop in context is trusted.
func (h *Handlers) CustomerOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	var req customerOrdersRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("rejected malformed order history request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		logger.Warn("rejected incomplete order history request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.historyService.CustomerOrders(ctx, services.HistoryRequest{
		Shop:         shopFromContext(ctx),
		CustomerID:   req.CustomerID,
		DeliveryDate: req.DeliveryDate,
		Cursor:       req.Cursor,
		ToNextPage:   req.ToNextPage,
	})
	if err != nil {
		h.writeHistoryError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, result)
}

func (h *Handlers) writeHistoryError(w http.ResponseWriter, r *http.Request, err error) {
	logger := h.loggerFromContext(r.Context())

	switch {
	case errors.Is(err, services.ErrSessionRequired):
		logger.Warn("order history requested for uninstalled shop", "error", err)
		http.Error(w, "App is not installed for this shop", http.StatusForbidden)
	case tags.IsResolutionError(err):
		logger.Error("vendor resolution failed", "error", err)
		http.Error(w, "Could not resolve vendor for customer", http.StatusInternalServerError)
	default:
		logger.Error("order history request failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
