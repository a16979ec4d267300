// Package services – SettlementService
//
// This file implements the payment settlement engine: fee policy resolution,
// payment creation against the external processor, and reconciliation of
// processor outcomes back into payments and claims.
//
// Reconciliation discipline: ApplySettlementEvent is the only code path that
// mutates a Payment or a Claim from an external signal. Webhook deliveries
// and status polls both route through it, so at-least-once delivery, replays,
// and poll/webhook races all collapse to one idempotent application.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/reclaimhq/go-reclaim-backend/internal/domain"
	"github.com/reclaimhq/go-reclaim-backend/internal/processor"
	"github.com/reclaimhq/go-reclaim-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// platformFeePercent is the platform's cut of every settlement, applied to
// the full charged amount (shipping fee plus tip).
const platformFeePercent = 10

// ShippingDefaults is the system-wide fallback fee policy, used when neither
// the claim nor the item owner has a stored configuration.
type ShippingDefaults struct {
	DefaultFeeCents int64
	MinFeeCents     int64
	MaxFeeCents     int64
	AllowCustomFee  bool
	AllowTipping    bool
}

// CreatePaymentInput carries the payer's choices for one settlement attempt.
// FeeCents nil means "use the resolved default".
type CreatePaymentInput struct {
	FeeCents *int64
	TipCents int64
}

// SettlementService owns payments, payout accounts, shipping fee policy, and
// the reconciliation of processor outcomes.
type SettlementService struct {
	DB        *gorm.DB
	Processor processor.Client

	// Currency for all intents, ISO 4217 lowercase.
	Currency string

	// Defaults is the system fee policy of last resort.
	Defaults ShippingDefaults
}

// NewSettlementService constructs a SettlementService.
func NewSettlementService(db *gorm.DB, pc processor.Client, defaults ShippingDefaults) *SettlementService {
	return &SettlementService{
		DB:        db,
		Processor: pc,
		Currency:  "usd",
		Defaults:  defaults,
	}
}

// PlatformFee computes the platform's cut of totalCents in integer cents,
// rounding half-up. The transfer to the finder is always the exact
// complement, so fee + transfer == total for every amount.
func PlatformFee(totalCents int64) int64 {
	return (totalCents*platformFeePercent + 50) / 100
}

// ResolveShippingConfig returns the effective fee policy for a claim:
// claim-specific row, else the item owner's default row, else the system
// defaults.
func (s *SettlementService) ResolveShippingConfig(ctx context.Context, claim *domain.Claim) (*domain.ShippingConfig, error) {
	cfg, err := repo.GetClaimShippingConfig(ctx, s.DB, claim.ID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if claim.Item.OwnerUserID != nil {
		cfg, err = repo.GetUserShippingConfig(ctx, s.DB, *claim.Item.OwnerUserID)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}
	return &domain.ShippingConfig{
		DefaultFeeCents: s.Defaults.DefaultFeeCents,
		MinFeeCents:     s.Defaults.MinFeeCents,
		MaxFeeCents:     s.Defaults.MaxFeeCents,
		AllowCustomFee:  s.Defaults.AllowCustomFee,
		AllowTipping:    s.Defaults.AllowTipping,
	}, nil
}

// GetShippingConfig returns the effective fee policy for a claim to a
// participant.
func (s *SettlementService) GetShippingConfig(ctx context.Context, claimID, callerID, callerEmail string) (*domain.ShippingConfig, error) {
	claim, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if !IsParticipant(claim, callerID, callerEmail) {
		return nil, ErrForbidden
	}
	return s.ResolveShippingConfig(ctx, claim)
}

// UpsertClaimShippingConfig stores a claim-scoped fee policy. Only the item
// owner sets policy for their claims.
func (s *SettlementService) UpsertClaimShippingConfig(ctx context.Context, claimID, callerID string, in domain.ShippingConfig) (*domain.ShippingConfig, error) {
	claim, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if callerID == "" || claim.Item.OwnerUserID == nil || *claim.Item.OwnerUserID != callerID {
		return nil, ErrForbidden
	}
	if err := validateFeeBounds(in); err != nil {
		return nil, err
	}
	var owner *string
	if claim.Item.OwnerUserID != nil {
		owner = claim.Item.OwnerUserID
	}
	return repo.UpsertShippingConfig(ctx, s.DB, owner, &claim.ID, in)
}

// UpsertUserShippingConfig stores a user's default fee policy, consulted for
// every claim on their items that has no claim-specific row.
func (s *SettlementService) UpsertUserShippingConfig(ctx context.Context, userID string, in domain.ShippingConfig) (*domain.ShippingConfig, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	if err := validateFeeBounds(in); err != nil {
		return nil, err
	}
	return repo.UpsertShippingConfig(ctx, s.DB, &userID, nil, in)
}

// RegisterPayoutAccount links a processor connected account to the user and
// caches its readiness flags. The cached flags converge with the processor
// through account.updated webhooks; a live fetch seeds them immediately when
// the processor is reachable.
func (s *SettlementService) RegisterPayoutAccount(ctx context.Context, userID, externalAccountID string) (*domain.PayoutAccount, error) {
	if userID == "" || strings.TrimSpace(externalAccountID) == "" {
		return nil, ErrForbidden
	}
	externalAccountID = strings.TrimSpace(externalAccountID)
	enabled, onboarded := false, false
	if acct, err := s.Processor.GetAccount(ctx, externalAccountID); err == nil {
		enabled, onboarded = acct.Ready(), acct.DetailsSubmitted
	}
	return repo.UpsertPayoutAccount(ctx, s.DB, userID, externalAccountID, enabled, onboarded)
}

// CreatePayment validates all settlement preconditions, creates a pending
// Payment, and registers a destination-transfer intent with the processor.
// On processor failure the pending row is removed again; a Payment without
// an intent never survives this method.
func (s *SettlementService) CreatePayment(ctx context.Context, claimID, callerID, callerEmail string, in CreatePaymentInput) (*domain.Payment, *processor.Intent, error) {
	tr := otel.Tracer("services/SettlementService")
	ctx, span := tr.Start(ctx, "CreatePayment",
		trace.WithAttributes(attribute.String("claim.id", claimID)),
	)
	defer span.End()

	claim, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrClaimNotFound
		}
		return nil, nil, err
	}

	// Only the claimer pays.
	if !isClaimer(claim, callerID, callerEmail) {
		return nil, nil, ErrForbidden
	}

	if !claim.Status.Payable() {
		if claim.Status == domain.ClaimPaid || claim.Status == domain.ClaimShipped || claim.Status == domain.ClaimDelivered {
			return nil, nil, ErrPaymentAlreadySettled
		}
		return nil, nil, ErrClaimNotPayable
	}
	settled, err := repo.CountSucceededPayments(ctx, s.DB, claimID)
	if err != nil {
		return nil, nil, err
	}
	if settled > 0 {
		return nil, nil, ErrPaymentAlreadySettled
	}

	// Renegotiation supersedes any prior attempt: its intent must be
	// cancelled before a new one may exist, so two live intents can never
	// settle the same claim.
	if prior, perr := repo.LatestPayment(ctx, s.DB, claimID); perr == nil {
		if !prior.Status.Terminal() && prior.ExternalIntentID != nil {
			if _, cerr := s.Processor.CancelIntent(ctx, *prior.ExternalIntentID); cerr != nil && !errors.Is(cerr, processor.ErrRejected) {
				return nil, nil, cerr
			}
			if _, uerr := repo.UpdatePaymentStatus(ctx, s.DB, prior.ID, domain.PaymentFailed); uerr != nil {
				return nil, nil, uerr
			}
		}
	} else if !errors.Is(perr, repo.ErrNotFound) {
		return nil, nil, perr
	}

	cfg, err := s.ResolveShippingConfig(ctx, claim)
	if err != nil {
		return nil, nil, err
	}
	fee, tip, err := resolveAmounts(cfg, in)
	if err != nil {
		return nil, nil, err
	}
	total := fee + tip

	recipient, account, err := s.payableRecipient(ctx, claim)
	if err != nil {
		return nil, nil, err
	}

	platformFee := PlatformFee(total)
	transfer := total - platformFee

	var payer *string
	if callerID != "" {
		payer = &callerID
	}
	payment, err := repo.CreatePayment(ctx, s.DB, claimID, payer, recipient, total, platformFee, transfer)
	if err != nil {
		return nil, nil, err
	}

	intent, err := s.Processor.CreateIntent(ctx, processor.CreateIntentParams{
		AmountCents:        total,
		TransferCents:      transfer,
		Currency:           s.Currency,
		DestinationAccount: account.ExternalAccountID,
		Metadata:           map[string]string{processor.MetadataClaimKey: claimID},
	})
	if err != nil {
		// Compensate: the pending row must not outlive the failed intent.
		_ = repo.DeletePayment(ctx, s.DB, payment.ID)
		return nil, nil, err
	}
	if err := repo.AttachIntent(ctx, s.DB, payment.ID, intent.ID); err != nil {
		_, _ = s.Processor.CancelIntent(ctx, intent.ID)
		_ = repo.DeletePayment(ctx, s.DB, payment.ID)
		return nil, nil, err
	}
	payment.ExternalIntentID = &intent.ID

	return payment, intent, nil
}

// ApplySettlementEvent applies one terminal processor outcome for an intent.
// It is the single entry point that moves payments (and, on success, claims)
// from external signals, and it is idempotent: a duplicate intent delivery
// or an already-terminal payment is a silent no-op.
func (s *SettlementService) ApplySettlementEvent(ctx context.Context, intentID, claimID, outcome string) error {
	tr := otel.Tracer("services/SettlementService")
	ctx, span := tr.Start(ctx, "ApplySettlementEvent",
		trace.WithAttributes(
			attribute.String("intent.id", intentID),
			attribute.String("outcome", outcome),
		),
	)
	defer span.End()

	if intentID == "" {
		return nil
	}
	if _, err := repo.RecordSettlementEvent(ctx, s.DB, intentID, claimID, outcome); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil
		}
		return err
	}

	payment, err := repo.GetPaymentByIntent(ctx, s.DB, intentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// No payment yet: the delivery may have raced ahead of
			// intent attachment. Release the ledger row so a
			// redelivery can apply once the payment is visible.
			return repo.DeleteSettlementEvent(ctx, s.DB, intentID)
		}
		return err
	}
	if payment.Status.Terminal() {
		return nil
	}

	switch outcome {
	case string(domain.PaymentSucceeded):
		// At most one settlement per claim: if another payment already
		// succeeded, this one terminates failed instead.
		settled, err := repo.CountSucceededPayments(ctx, s.DB, payment.ClaimID)
		if err != nil {
			return err
		}
		if settled > 0 {
			_, err = repo.UpdatePaymentStatus(ctx, s.DB, payment.ID, domain.PaymentFailed)
			return err
		}
		ok, err := repo.UpdatePaymentStatus(ctx, s.DB, payment.ID, domain.PaymentSucceeded)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		// accepted → paid; a stale claim state (already past paid, or a
		// raced duplicate) leaves the claim untouched.
		_, err = repo.TransitionClaim(ctx, s.DB, payment.ClaimID, domain.ClaimAccepted, domain.ClaimPaid)
		return err
	case string(domain.PaymentFailed):
		_, err := repo.UpdatePaymentStatus(ctx, s.DB, payment.ID, domain.PaymentFailed)
		return err
	default:
		return nil
	}
}

// HandleWebhook dispatches a verified processor event. Event kinds outside
// the handled set are acknowledged and dropped.
func (s *SettlementService) HandleWebhook(ctx context.Context, ev *processor.Event) error {
	tr := otel.Tracer("services/SettlementService")
	ctx, span := tr.Start(ctx, "HandleWebhook",
		trace.WithAttributes(attribute.String("event.type", ev.Type)),
	)
	defer span.End()

	switch ev.Type {
	case processor.EventAccountUpdated:
		if ev.Account == nil || ev.Account.ID == "" {
			return nil
		}
		return repo.SetPayoutAccountStatus(ctx, s.DB, ev.Account.ID, ev.Account.Ready(), ev.Account.DetailsSubmitted)
	case processor.EventPaymentSucceeded:
		if ev.Intent == nil {
			return nil
		}
		return s.ApplySettlementEvent(ctx, ev.Intent.ID, ev.Intent.ClaimID(), string(domain.PaymentSucceeded))
	case processor.EventPaymentFailed:
		if ev.Intent == nil {
			return nil
		}
		return s.ApplySettlementEvent(ctx, ev.Intent.ID, ev.Intent.ClaimID(), string(domain.PaymentFailed))
	default:
		return nil
	}
}

// Status reports the settlement state of a claim for a participant, as the
// payment-status poll endpoint exposes it. A non-terminal payment with an
// intent is re-checked live against the processor; terminal live outcomes
// are applied through ApplySettlementEvent so the poll can never disagree
// with a webhook. When the processor is unreachable the cached state stands.
func (s *SettlementService) Status(ctx context.Context, claimID, callerID, callerEmail string) (string, error) {
	tr := otel.Tracer("services/SettlementService")
	ctx, span := tr.Start(ctx, "Status",
		trace.WithAttributes(attribute.String("claim.id", claimID)),
	)
	defer span.End()

	claim, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrClaimNotFound
		}
		return "", err
	}
	if !IsParticipant(claim, callerID, callerEmail) {
		return "", ErrForbidden
	}

	// Once settled the claim status is the answer: clients track the
	// post-payment lifecycle from the same poll.
	switch claim.Status {
	case domain.ClaimPaid, domain.ClaimShipped, domain.ClaimDelivered:
		return string(claim.Status), nil
	}

	payment, err := repo.LatestPayment(ctx, s.DB, claimID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return string(domain.PaymentPending), nil
		}
		return "", err
	}

	if !payment.Status.Terminal() && payment.ExternalIntentID != nil {
		if intent, ierr := s.Processor.GetIntent(ctx, *payment.ExternalIntentID); ierr == nil && intent.Terminal() {
			outcome := string(domain.PaymentFailed)
			if intent.Status == processor.IntentStatusSucceeded {
				outcome = string(domain.PaymentSucceeded)
			}
			if aerr := s.ApplySettlementEvent(ctx, intent.ID, claimID, outcome); aerr == nil {
				return outcome, nil
			}
		}
	}
	return string(payment.Status), nil
}

// payableRecipient resolves the claim's payout destination: the item owner's
// user id and their enabled payout account. Readiness is re-checked live
// against the processor when reachable; the cached Enabled flag is the
// fallback.
func (s *SettlementService) payableRecipient(ctx context.Context, claim *domain.Claim) (string, *domain.PayoutAccount, error) {
	if claim.Item.OwnerUserID == nil {
		return "", nil, ErrRecipientNotOnboarded
	}
	owner := *claim.Item.OwnerUserID

	account, err := repo.GetPayoutAccount(ctx, s.DB, owner)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", nil, ErrRecipientNotOnboarded
		}
		return "", nil, err
	}

	enabled := account.Enabled
	if live, lerr := s.Processor.GetAccount(ctx, account.ExternalAccountID); lerr == nil {
		enabled = live.Ready()
		if enabled != account.Enabled || live.DetailsSubmitted != account.Onboarded {
			_ = repo.SetPayoutAccountStatus(ctx, s.DB, account.ExternalAccountID, enabled, live.DetailsSubmitted)
		}
	}
	if !enabled {
		return "", nil, ErrRecipientNotOnboarded
	}
	return owner, account, nil
}

// resolveAmounts applies the fee policy to the payer's choices. When custom
// fees are disallowed the requested fee is overridden with the default
// rather than rejected; tips are rejected outright when tipping is off.
func resolveAmounts(cfg *domain.ShippingConfig, in CreatePaymentInput) (fee, tip int64, err error) {
	fee = cfg.DefaultFeeCents
	if in.FeeCents != nil {
		if !cfg.AllowCustomFee {
			fee = cfg.DefaultFeeCents
		} else if *in.FeeCents < cfg.MinFeeCents || *in.FeeCents > cfg.MaxFeeCents {
			return 0, 0, ErrFeeOutOfRange
		} else {
			fee = *in.FeeCents
		}
	}
	tip = in.TipCents
	if tip < 0 {
		return 0, 0, ErrFeeOutOfRange
	}
	if tip > 0 && !cfg.AllowTipping {
		return 0, 0, ErrTipNotAllowed
	}
	if fee+tip <= 0 {
		return 0, 0, ErrFeeOutOfRange
	}
	return fee, tip, nil
}

// validateFeeBounds enforces min <= default <= max and non-negative values.
func validateFeeBounds(in domain.ShippingConfig) error {
	if in.MinFeeCents < 0 || in.DefaultFeeCents < in.MinFeeCents || in.MaxFeeCents < in.DefaultFeeCents {
		return ErrFeeOutOfRange
	}
	return nil
}

// isClaimer reports whether the caller is the claim's claimer, by user id or
// case-insensitive email.
func isClaimer(claim *domain.Claim, callerID, callerEmail string) bool {
	if callerID != "" && claim.ClaimerUserID != nil && *claim.ClaimerUserID == callerID {
		return true
	}
	return callerEmail != "" && claim.ClaimerEmail != "" &&
		strings.EqualFold(claim.ClaimerEmail, callerEmail)
}
