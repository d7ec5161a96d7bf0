package v1

import (
	"net/http"

	"shopfront-backend/internal/usecase"
)

type ProductHandler struct {
	productUC *usecase.ProductUsecase
}

func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{productUC: uc}
}

type adjustStockRequest struct {
	Change int `json:"change"`
}

// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.productUC.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "", product)
}

// PATCH /api/v1/admin/products/{id}/stock
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req adjustStockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	product, err := h.productUC.AdjustStock(r.Context(), r.PathValue("id"), req.Change, admin.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Stock updated", product)
}
