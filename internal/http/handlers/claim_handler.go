// Claim HTTP handlers.
//
// This file exposes REST endpoints for items and the claim lifecycle:
//   - POST   /items                  (report a found item)
//   - DELETE /items/{id}             (owner cascade delete)
//   - POST   /claims                 (file a claim; mints its chat room)
//   - GET    /claims                 (list the caller's claims)
//   - GET    /claims/{id}            (fetch one claim, participant-gated)
//   - POST   /claims/{id}/accept     (owner)
//   - POST   /claims/{id}/reject     (owner)
//   - POST   /claims/{id}/ship       (owner, after payment)
//   - POST   /claims/{id}/deliver    (either participant)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
	"github.com/reclaimhq/go-reclaim-backend/internal/processor"
	"github.com/reclaimhq/go-reclaim-backend/internal/realtime"
	"github.com/reclaimhq/go-reclaim-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ClaimService defines item and claim lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ClaimService interface {
	CreateItem(ctx context.Context, ownerUserID *string, title string) (*domain.Item, error)
	DeleteItem(ctx context.Context, callerID, itemID string) error
	Create(ctx context.Context, itemID string, claimerUserID *string, claimerEmail string) (*domain.Claim, error)
	Get(ctx context.Context, claimID, callerID, callerEmail string) (*domain.Claim, error)
	GetByRoom(ctx context.Context, roomID, callerID, callerEmail string) (*domain.Claim, error)
	List(ctx context.Context, callerID, callerEmail string) ([]domain.Claim, error)
	Accept(ctx context.Context, claimID, callerID string) (*domain.Claim, error)
	Reject(ctx context.Context, claimID, callerID string) (*domain.Claim, error)
	MarkShipped(ctx context.Context, claimID, callerID string) (*domain.Claim, error)
	MarkDelivered(ctx context.Context, claimID, callerID, callerEmail string) (*domain.Claim, error)
}

// ChatService defines room messaging operations consumed by HTTP handlers.
type ChatService interface {
	Post(ctx context.Context, roomID, callerID, callerEmail string, in services.PostMessageInput) (*domain.ChatMessage, error)
	History(ctx context.Context, roomID, callerID, callerEmail string, limit int) ([]domain.ChatMessage, error)
}

// SettlementService defines payment and fee-policy operations consumed by
// HTTP handlers.
type SettlementService interface {
	CreatePayment(ctx context.Context, claimID, callerID, callerEmail string, in services.CreatePaymentInput) (*domain.Payment, *processor.Intent, error)
	Status(ctx context.Context, claimID, callerID, callerEmail string) (string, error)
	GetShippingConfig(ctx context.Context, claimID, callerID, callerEmail string) (*domain.ShippingConfig, error)
	UpsertClaimShippingConfig(ctx context.Context, claimID, callerID string, in domain.ShippingConfig) (*domain.ShippingConfig, error)
	UpsertUserShippingConfig(ctx context.Context, userID string, in domain.ShippingConfig) (*domain.ShippingConfig, error)
	RegisterPayoutAccount(ctx context.Context, userID, externalAccountID string) (*domain.PayoutAccount, error)
	HandleWebhook(ctx context.Context, ev *processor.Event) error
}

// UnreadService defines unread aggregation consumed by HTTP handlers.
type UnreadService interface {
	Counts(ctx context.Context, callerID, callerEmail string) (*services.UnreadSummary, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for items, claims, payments, chat, and
// unread tracking. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	claimSvc  ClaimService
	chatSvc   ChatService
	settleSvc SettlementService
	unreadSvc UnreadService

	bus           realtime.Bus
	webhookSecret string
	pollInterval  int // seconds, advertised on /unread
}

// New constructs and returns a Handlers instance bound to the given services.
func New(claimSvc ClaimService, chatSvc ChatService, settleSvc SettlementService, unreadSvc UnreadService, bus realtime.Bus, webhookSecret string, pollIntervalSeconds int) *Handlers {
	return &Handlers{
		claimSvc:      claimSvc,
		chatSvc:       chatSvc,
		settleSvc:     settleSvc,
		unreadSvc:     unreadSvc,
		bus:           bus,
		webhookSecret: webhookSecret,
		pollInterval:  pollIntervalSeconds,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to the "X-User-ID" header. Empty
// means an unauthenticated caller.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		return strings.TrimSpace(c.GetHeader("X-User-ID"))
	}
	return ""
}

// userEmail extracts the caller's email, the identity handle for
// unauthenticated claimers, from the "X-User-Email" header.
func userEmail(c *gin.Context) string {
	if c != nil && c.Request != nil {
		return strings.TrimSpace(c.GetHeader("X-User-Email"))
	}
	return ""
}

//
// DTOs
//

// CreateItemRequest is the JSON payload for reporting a found item.
type CreateItemRequest struct {
	// Title describes the item (1–255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Black umbrella, wooden handle"`
}

// CreateClaimRequest is the JSON payload for filing a claim on an item.
type CreateClaimRequest struct {
	// ItemID is the claimed item's id.
	ItemID string `json:"item_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Email identifies an unauthenticated claimer; optional when the
	// caller is signed in.
	Email string `json:"email" example:"claimer@example.com"`
}

//
// Handlers
//

// CreateItem godoc
// @ID          createItem
// @Summary     Report a found item
// @Description Registers an item so it can be claimed. Anonymous finders may report items but cannot receive payouts.
// @Tags        Items
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateItemRequest  true  "Item payload"
//
// @Success     201  {object}  domain.Item
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /items [post]
func (h *Handlers) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1–255 chars)")
		return
	}

	var owner *string
	if uid := userID(c); uid != "" {
		owner = &uid
	}
	item, err := h.claimSvc.CreateItem(c.Request.Context(), owner, req.Title)
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, item)
}

// DeleteItem godoc
// @ID          deleteItem
// @Summary     Delete an item
// @Description Removes an item together with its claims, rooms, messages, and payments. Owner only.
// @Tags        Items
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Item ID (UUID)"
//
// @Success     204  {string} string "No Content"
// @Failure     403  {object} handlers.ErrorResponse "Not the item owner"
// @Failure     404  {object} handlers.ErrorResponse "Item not found"
// @Router      /items/{id} [delete]
func (h *Handlers) DeleteItem(c *gin.Context) {
	if err := h.claimSvc.DeleteItem(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		failServiceError(c, err)
		return
	}
	noContent(c)
}

// CreateClaim godoc
// @ID          createClaim
// @Summary     File a claim on an item
// @Description Creates a pending claim and mints its chat room. Callers identify by user id or email.
// @Tags        Claims
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateClaimRequest  true  "Claim payload"
//
// @Success     201  {object}  domain.Claim
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Item not found"
// @Router      /claims [post]
func (h *Handlers) CreateClaim(c *gin.Context) {
	var req CreateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ItemID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id required")
		return
	}

	var claimer *string
	if uid := userID(c); uid != "" {
		claimer = &uid
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = userEmail(c)
	}

	claim, err := h.claimSvc.Create(c.Request.Context(), req.ItemID, claimer, email)
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, claim)
}

// ListClaims godoc
// @ID          listClaims
// @Summary     List the caller's claims
// @Description Returns every claim the caller participates in, as item owner or claimer, newest first.
// @Tags        Claims
// @Produce     json
//
// @Param       X-User-ID     header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Email  header  string  false "Claimer email (for unauthenticated claimers)"
//
// @Success     200  {array}   domain.Claim
// @Failure     401  {object}  handlers.ErrorResponse  "No identity supplied"
// @Router      /claims [get]
func (h *Handlers) ListClaims(c *gin.Context) {
	uid, email := userID(c), userEmail(c)
	if uid == "" && email == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "identity required")
		return
	}
	claims, err := h.claimSvc.List(c.Request.Context(), uid, email)
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, claims)
}

// GetClaim godoc
// @ID          getClaim
// @Summary     Fetch one claim
// @Description Returns a claim to one of its participants.
// @Tags        Claims
// @Produce     json
//
// @Param       X-User-ID     header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Email  header  string  false "Claimer email"
// @Param       id            path    string  true  "Claim ID (UUID)"
//
// @Success     200  {object}  domain.Claim
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Claim not found"
// @Router      /claims/{id} [get]
func (h *Handlers) GetClaim(c *gin.Context) {
	claim, err := h.claimSvc.Get(c.Request.Context(), c.Param("id"), userID(c), userEmail(c))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}

// AcceptClaim godoc
// @ID          acceptClaim
// @Summary     Accept a claim
// @Description Moves a pending claim to accepted and marks the item claimed. Owner only; repeats are no-ops.
// @Tags        Claims
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Claim ID (UUID)"
//
// @Success     200  {object}  domain.Claim
// @Failure     403  {object}  handlers.ErrorResponse  "Not the item owner"
// @Failure     409  {object}  handlers.ErrorResponse  "Illegal transition or item already claimed"
// @Router      /claims/{id}/accept [post]
func (h *Handlers) AcceptClaim(c *gin.Context) {
	claim, err := h.claimSvc.Accept(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}

// RejectClaim godoc
// @ID          rejectClaim
// @Summary     Reject a claim
// @Description Moves a pending claim to rejected. The chat room stays open. Owner only.
// @Tags        Claims
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Claim ID (UUID)"
//
// @Success     200  {object}  domain.Claim
// @Failure     403  {object}  handlers.ErrorResponse  "Not the item owner"
// @Failure     409  {object}  handlers.ErrorResponse  "Illegal transition"
// @Router      /claims/{id}/reject [post]
func (h *Handlers) RejectClaim(c *gin.Context) {
	claim, err := h.claimSvc.Reject(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}

// ShipClaim godoc
// @ID          shipClaim
// @Summary     Mark a claim shipped
// @Description Moves a paid claim to shipped. Owner only.
// @Tags        Claims
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Claim ID (UUID)"
//
// @Success     200  {object}  domain.Claim
// @Failure     403  {object}  handlers.ErrorResponse  "Not the item owner"
// @Failure     409  {object}  handlers.ErrorResponse  "Illegal transition"
// @Router      /claims/{id}/ship [post]
func (h *Handlers) ShipClaim(c *gin.Context) {
	claim, err := h.claimSvc.MarkShipped(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}

// DeliverClaim godoc
// @ID          deliverClaim
// @Summary     Confirm delivery
// @Description Moves a shipped claim to delivered. Either participant may confirm.
// @Tags        Claims
// @Produce     json
//
// @Param       X-User-ID     header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Email  header  string  false "Claimer email"
// @Param       id            path    string  true  "Claim ID (UUID)"
//
// @Success     200  {object}  domain.Claim
// @Failure     409  {object}  handlers.ErrorResponse  "Illegal transition"
// @Router      /claims/{id}/deliver [post]
func (h *Handlers) DeliverClaim(c *gin.Context) {
	claim, err := h.claimSvc.MarkDelivered(c.Request.Context(), c.Param("id"), userID(c), userEmail(c))
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}
