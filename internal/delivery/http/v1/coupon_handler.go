package v1

import (
	"net/http"

	"github.com/shopspring/decimal"

	"shopfront-backend/internal/usecase"
	"shopfront-backend/pkg/utils"
)

// CouponHandler serves both the shopper preview and the admin CRUD endpoints.
type CouponHandler struct {
	couponUC *usecase.CouponUsecase
}

func NewCouponHandler(uc *usecase.CouponUsecase) *CouponHandler {
	return &CouponHandler{couponUC: uc}
}

type validateCouponRequest struct {
	Code      string          `json:"code"`
	CartTotal decimal.Decimal `json:"cartTotal"`
}

// Validate previews a coupon against a cart total. Rejections are a normal
// 200 response with valid=false.
// POST /api/v1/coupons/validate
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req validateCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.couponUC.Validate(r.Context(), req.Code, req.CartTotal, user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "", res)
}

// GET /api/v1/admin/coupons?page=1&limit=20
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coupons, page, err := h.couponUC.ListCoupons(r.Context(), utils.ParseInt(q.Get("page"), 1), utils.ParseInt(q.Get("limit"), 0))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, coupons, page)
}

// POST /api/v1/admin/coupons
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req usecase.CouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	coupon, err := h.couponUC.CreateCoupon(r.Context(), req, admin.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Coupon created", coupon)
}

// GET /api/v1/admin/coupons/{id}
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.couponUC.GetCoupon(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "", coupon)
}

// PUT /api/v1/admin/coupons/{id}
func (h *CouponHandler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req usecase.CouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	coupon, err := h.couponUC.UpdateCoupon(r.Context(), r.PathValue("id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Coupon updated", coupon)
}

// DELETE /api/v1/admin/coupons/{id}
func (h *CouponHandler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.couponUC.DeleteCoupon(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "Coupon deleted", nil)
}
