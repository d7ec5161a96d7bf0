package v1

import (
	"net/http"

	"shopfront-backend/internal/usecase"
)

type CheckoutHandler struct {
	checkoutUC *usecase.CheckoutUsecase
}

func NewCheckoutHandler(uc *usecase.CheckoutUsecase) *CheckoutHandler {
	return &CheckoutHandler{checkoutUC: uc}
}

// Checkout turns the caller's cart into a PENDING order and returns the
// payment descriptor the client needs to continue.
// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req usecase.CheckoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.checkoutUC.CreateCheckout(r.Context(), user.ID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Order placed", res)
}
