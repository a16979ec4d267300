// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., claim_not_payable) are reserved for business
//     logic errors that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Usage:
//   - Handlers select the most specific matching code and pass it to `fail()` along
//     with the corresponding HTTP status and message.
//   - Clients are expected to branch on these codes for programmatic error handling.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "claim_not_payable",
//	  "message": "claim is not payable in its current state"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reclaimhq/go-reclaim-backend/internal/processor"
	"github.com/reclaimhq/go-reclaim-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeFeeOutOfRange          = "fee_out_of_range"
	ErrCodeTipNotAllowed          = "tip_not_allowed"
	ErrCodeClaimNotPayable        = "claim_not_payable"
	ErrCodeRecipientNotOnboarded  = "recipient_not_onboarded"
	ErrCodePaymentAlreadySettled  = "payment_already_settled"
	ErrCodeProcessorError         = "processor_error"
	ErrCodeInvalidTransition      = "invalid_transition"
	ErrCodeMethodNotAllowed       = "method_not_allowed"
)

// failServiceError translates service-layer sentinel errors into the matching
// HTTP status and stable code; anything unrecognized becomes a 500.
// Authorization failures deliberately share one generic message so responses
// never confirm whether the resource exists for someone else.
func failServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrClaimNotFound),
		errors.Is(err, services.ErrPaymentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrNotParticipant):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not allowed")
	case errors.Is(err, services.ErrEmptyClaim),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrFeeOutOfRange):
		fail(c, http.StatusBadRequest, ErrCodeFeeOutOfRange, err.Error())
	case errors.Is(err, services.ErrTipNotAllowed):
		fail(c, http.StatusBadRequest, ErrCodeTipNotAllowed, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, services.ErrItemAlreadyClaimed):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrClaimNotPayable):
		fail(c, http.StatusConflict, ErrCodeClaimNotPayable, err.Error())
	case errors.Is(err, services.ErrRecipientNotOnboarded):
		fail(c, http.StatusConflict, ErrCodeRecipientNotOnboarded, err.Error())
	case errors.Is(err, services.ErrPaymentAlreadySettled):
		fail(c, http.StatusConflict, ErrCodePaymentAlreadySettled, err.Error())
	case errors.Is(err, processor.ErrRejected),
		errors.Is(err, processor.ErrUnavailable):
		fail(c, http.StatusBadGateway, ErrCodeProcessorError, "payment processor error")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
