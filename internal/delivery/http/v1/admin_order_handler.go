package v1

import (
	"net/http"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/usecase"
	"shopfront-backend/pkg/utils"
)

type AdminOrderHandler struct {
	orderUC *usecase.OrderUsecase
}

func NewAdminOrderHandler(uc *usecase.OrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{orderUC: uc}
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// ListOrders filters by userId, status, paymentStatus and a from/to creation window.
// GET /api/v1/admin/orders
func (h *AdminOrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.OrderFilter{
		Page:          utils.ParseInt(q.Get("page"), 1),
		Limit:         utils.ParseInt(q.Get("limit"), 0),
		UserID:        q.Get("userId"),
		Status:        q.Get("status"),
		PaymentStatus: q.Get("paymentStatus"),
	}
	var err error
	if filter.CreatedFrom, err = utils.ParseTime(q.Get("from")); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid from date")
		return
	}
	if filter.CreatedTo, err = utils.ParseTime(q.Get("to")); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid to date")
		return
	}

	orders, page, err := h.orderUC.ListOrders(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, orders, page)
}

// GET /api/v1/admin/orders/stats
func (h *AdminOrderHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orderUC.GetStats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "", stats)
}

// PATCH /api/v1/admin/orders/{id}/status
func (h *AdminOrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.orderUC.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.Reason, admin.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Order status updated", order)
}

// GET /api/v1/admin/orders/{id}/history
func (h *AdminOrderHandler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.orderUC.GetOrderHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "", history)
}
