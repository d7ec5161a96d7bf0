package v1

import (
	"net/http"

	"shopfront-backend/internal/usecase"
)

type PaymentHandler struct {
	paymentUC *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{paymentUC: uc}
}

type createIntentRequest struct {
	OrderID string `json:"orderId"`
}

// CreateIntent starts an embedded card payment for an existing order.
// POST /api/v1/payments/intents
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createIntentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	intent, err := h.paymentUC.CreateDirectIntent(r.Context(), req.OrderID, user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "", intent)
}

// GET /api/v1/payments/intents/{id}
func (h *PaymentHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	intent, err := h.paymentUC.GetIntent(r.Context(), r.PathValue("id"), user)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "", intent)
}

// POST /api/v1/payments/intents/{id}/confirm
func (h *PaymentHandler) ConfirmIntent(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.paymentUC.ConfirmIntent(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "", res)
}

// CollectCash records a cash on delivery payment taken by staff.
// POST /api/v1/admin/payments/{id}/collect
func (h *PaymentHandler) CollectCash(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.paymentUC.CollectCashPayment(r.Context(), r.PathValue("id"), admin.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Payment collected", res)
}

// POST /api/v1/admin/orders/{id}/refund
func (h *PaymentHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.paymentUC.RefundOrder(r.Context(), r.PathValue("id"), admin.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Order refunded", res)
}
