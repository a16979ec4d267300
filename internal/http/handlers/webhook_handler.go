// Settlement webhook handler.
//
// The processor POSTs signed JSON events here. The signature is verified
// against the raw body before any state is touched; a bad signature is a 400
// and nothing is applied. Replayed deliveries are deduplicated downstream, so
// this endpoint always answers 200 for well-signed events.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reclaimhq/go-reclaim-backend/internal/http/middleware"
	"github.com/reclaimhq/go-reclaim-backend/internal/processor"
)

// maxWebhookBody caps webhook payloads at 1 MiB.
const maxWebhookBody = 1 << 20

// Webhook godoc
// @ID          settlementWebhook
// @Summary     Receive processor settlement events
// @Description Verifies the delivery signature and applies the event exactly once. Unknown event types are acknowledged and ignored.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       X-Settlement-Signature  header  string  true  "HMAC-SHA256 of the raw body"
//
// @Success     200  {object}  map[string]bool
// @Failure     400  {object}  handlers.ErrorResponse  "Bad signature or unreadable body"
// @Router      /webhooks/settlement [post]
func (h *Handlers) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	ev, err := processor.ParseEvent(body, c.GetHeader(processor.SignatureHeader), h.webhookSecret)
	if err != nil {
		middleware.LoggerFrom(c).Warn().
			Err(err).
			Str("path", c.FullPath()).
			Msg("rejected settlement webhook")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid webhook delivery")
		return
	}

	if err := h.settleSvc.HandleWebhook(c.Request.Context(), ev); err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"received": true})
}
