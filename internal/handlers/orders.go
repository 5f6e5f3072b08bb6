package handlers

import (
	"net/http"

	"proposals/models"
)

type placeOrderRequest struct {
	Notes *string `json:"notes" validate:"omitempty,max=500"`
}

// PlaceOrderHandler обрабатывает POST /api/v1/proposals/{proposalId}/orders.
// Заказ создаётся только по одобренному предложению, не более одного
// активного заказа на предложение.
func (h *Handler) PlaceOrderHandler(w http.ResponseWriter, r *http.Request) {
	proposalID, err := pathID(r, "proposalId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req placeOrderRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, "invalid JSON format")
			return
		}
		if err := h.validate.Struct(req); err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	o, err := h.Orders.PlaceOrder(r.Context(), proposalID, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handler) GetOrdersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	status := models.OrderStatus(r.URL.Query().Get("status"))

	orders, err := h.Orders.List(r.Context(), status, params.Limit, params.Offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	o, err := h.Orders.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// CancelOrderHandler отменяет заказ в статусе pending или approved
func (h *Handler) CancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	o, err := h.Orders.CancelOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
