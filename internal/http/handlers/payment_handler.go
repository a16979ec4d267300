// Payment, settlement, and shipping-config HTTP handlers.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
	"github.com/reclaimhq/go-reclaim-backend/internal/services"
)

// CreatePaymentRequest is the JSON payload for starting a settlement.
type CreatePaymentRequest struct {
	// FeeCents overrides the shipping fee when custom fees are allowed;
	// omit to use the configured default.
	FeeCents *int64 `json:"fee_cents" example:"1500"`
	// TipCents is an optional tip for the finder.
	TipCents int64 `json:"tip_cents" example:"500"`
}

// PaymentResponse pairs the stored payment row with the processor handle the
// client needs to confirm the charge.
type PaymentResponse struct {
	Payment      *domain.Payment `json:"payment"`
	IntentID     string          `json:"intent_id"`
	ClientSecret string          `json:"client_secret,omitempty"`
}

// PaymentStatusResponse is the polling payload for settlement progress.
type PaymentStatusResponse struct {
	Status string `json:"status" example:"succeeded"`
}

// ShippingConfigRequest is the JSON payload for fee-policy upserts.
type ShippingConfigRequest struct {
	DefaultFeeCents int64  `json:"default_fee_cents" binding:"required" example:"1500"`
	MinFeeCents     int64  `json:"min_fee_cents" example:"500"`
	MaxFeeCents     int64  `json:"max_fee_cents" binding:"required" example:"5000"`
	AllowCustomFee  bool   `json:"allow_custom_fee" example:"true"`
	AllowTipping    bool   `json:"allow_tipping" example:"true"`
	Notes           string `json:"notes" example:"Ships within 2 business days"`
}

// PayoutAccountRequest is the JSON payload for registering a payout account.
type PayoutAccountRequest struct {
	// ExternalAccountID is the processor-side connected account id.
	ExternalAccountID string `json:"external_account_id" binding:"required" example:"acct_1abc"`
}

func (r ShippingConfigRequest) toDomain() domain.ShippingConfig {
	return domain.ShippingConfig{
		DefaultFeeCents: r.DefaultFeeCents,
		MinFeeCents:     r.MinFeeCents,
		MaxFeeCents:     r.MaxFeeCents,
		AllowCustomFee:  r.AllowCustomFee,
		AllowTipping:    r.AllowTipping,
		Notes:           strings.TrimSpace(r.Notes),
	}
}

// CreatePayment godoc
// @ID          createPayment
// @Summary     Start settlement for an accepted claim
// @Description Creates a pending payment and a processor intent with a destination transfer to the item owner. Claimer only; one succeeded payment per claim.
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID     header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Email  header  string  false "Claimer email"
// @Param       id            path    string  true  "Claim ID (UUID)"
// @Param       body          body    handlers.CreatePaymentRequest  false "Fee override and tip"
//
// @Success     201  {object}  handlers.PaymentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Fee out of range or tip not allowed"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the claimer"
// @Failure     409  {object}  handlers.ErrorResponse  "Claim not payable, already settled, or recipient not onboarded"
// @Failure     502  {object}  handlers.ErrorResponse  "Processor error"
// @Router      /claims/{id}/payments [post]
func (h *Handlers) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed payment payload")
			return
		}
	}

	payment, intent, err := h.settleSvc.CreatePayment(c.Request.Context(), c.Param("id"), userID(c), userEmail(c), services.CreatePaymentInput{
		FeeCents: req.FeeCents,
		TipCents: req.TipCents,
	})
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, PaymentResponse{
		Payment:      payment,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
	})
}

// PaymentStatus godoc
// @ID          paymentStatus
// @Summary     Poll settlement status
// @Description Reports pending, succeeded, or failed for the claim's latest payment, re-checking the processor for stale pending intents.
// @Tags        Payments
// @Produce     json
//
// @Param       X-User-ID     header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Email  header  string  false "Claimer email"
// @Param       id            path    string  true  "Claim ID (UUID)"
//
// @Success     200  {object}  handlers.PaymentStatusResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Claim not found"
// @Router      /claims/{id}/payment-status [get]
func (h *Handlers) PaymentStatus(c *gin.Context) {
	status, err := h.settleSvc.Status(c.Request.Context(), c.Param("id"), userID(c), userEmail(c))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, PaymentStatusResponse{Status: status})
}

// GetShippingConfig godoc
// @ID          getShippingConfig
// @Summary     Fetch the effective fee policy for a claim
// @Description Resolves the claim-level override, then the owner's policy, then system defaults.
// @Tags        Payments
// @Produce     json
//
// @Param       X-User-ID     header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Email  header  string  false "Claimer email"
// @Param       id            path    string  true  "Claim ID (UUID)"
//
// @Success     200  {object}  domain.ShippingConfig
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Claim not found"
// @Router      /claims/{id}/shipping-config [get]
func (h *Handlers) GetShippingConfig(c *gin.Context) {
	cfg, err := h.settleSvc.GetShippingConfig(c.Request.Context(), c.Param("id"), userID(c), userEmail(c))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, cfg)
}

// PutClaimShippingConfig godoc
// @ID          putClaimShippingConfig
// @Summary     Set a claim-level fee policy
// @Description Upserts the fee policy for one claim. Item owner only.
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Claim ID (UUID)"
// @Param       body       body    handlers.ShippingConfigRequest  true  "Fee policy"
//
// @Success     200  {object}  domain.ShippingConfig
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid fee bounds"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the item owner"
// @Router      /claims/{id}/shipping-config [put]
func (h *Handlers) PutClaimShippingConfig(c *gin.Context) {
	var req ShippingConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed shipping config")
		return
	}
	cfg, err := h.settleSvc.UpsertClaimShippingConfig(c.Request.Context(), c.Param("id"), userID(c), req.toDomain())
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, cfg)
}

// PutUserShippingConfig godoc
// @ID          putUserShippingConfig
// @Summary     Set the caller's default fee policy
// @Description Upserts the fee policy applied to the caller's items when a claim has no override.
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.ShippingConfigRequest  true  "Fee policy"
//
// @Success     200  {object}  domain.ShippingConfig
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid fee bounds"
// @Failure     401  {object}  handlers.ErrorResponse  "No identity supplied"
// @Router      /users/me/shipping-config [put]
func (h *Handlers) PutUserShippingConfig(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "identity required")
		return
	}
	var req ShippingConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed shipping config")
		return
	}
	cfg, err := h.settleSvc.UpsertUserShippingConfig(c.Request.Context(), uid, req.toDomain())
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, cfg)
}

// PutPayoutAccount godoc
// @ID          putPayoutAccount
// @Summary     Register the caller's payout account
// @Description Links a processor connected account to the caller and seeds its readiness flags. Payouts stay disabled until the processor reports the account fully onboarded.
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.PayoutAccountRequest  true  "Connected account id"
//
// @Success     200  {object}  domain.PayoutAccount
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "No identity supplied"
// @Router      /users/me/payout-account [put]
func (h *Handlers) PutPayoutAccount(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "identity required")
		return
	}
	var req PayoutAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ExternalAccountID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "external_account_id required")
		return
	}
	acct, err := h.settleSvc.RegisterPayoutAccount(c.Request.Context(), uid, strings.TrimSpace(req.ExternalAccountID))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, acct)
}
