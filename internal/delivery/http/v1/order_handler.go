package v1

import (
	"net/http"

	"shopfront-backend/internal/usecase"
	"shopfront-backend/pkg/utils"
)

type OrderHandler struct {
	orderUC *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{orderUC: uc}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// GET /api/v1/orders?page=1&limit=20&status=PENDING
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	orders, page, err := h.orderUC.ListMyOrders(r.Context(), user.ID,
		utils.ParseInt(q.Get("page"), 1), utils.ParseInt(q.Get("limit"), 0), q.Get("status"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, orders, page)
}

// GET /api/v1/orders/{id} (also mounted for admins)
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	order, err := h.orderUC.GetOrder(r.Context(), r.PathValue("id"), user)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "", order)
}

// PATCH /api/v1/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	// the reason is optional, an empty body is fine
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	order, err := h.orderUC.CancelOrder(r.Context(), r.PathValue("id"), user.ID, req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Order cancelled", order)
}
