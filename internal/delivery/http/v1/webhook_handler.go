package v1

import (
	"io"
	"net/http"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/usecase"
	"shopfront-backend/pkg/logger"
	"shopfront-backend/pkg/utils"
)

// maxWebhookBody bounds provider payloads; real events are a few KB.
const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	webhookUC *usecase.WebhookUsecase
}

func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{webhookUC: uc}
}

// Stripe receives signed processor events. A non-2xx answer makes the
// processor redeliver, so only processing failures return 500.
// POST /api/v1/webhooks/stripe
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	if err := h.webhookUC.HandleEvent(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if domain.KindOf(err) == domain.KindBadRequest {
			logger.WithContext(r.Context()).Warn().Err(err).Msg("Rejected webhook")
			utils.WriteError(w, http.StatusBadRequest, domain.PublicMessage(err))
			return
		}
		respondError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
