package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/artify/contesthub/internal/cache"
	"github.com/artify/contesthub/internal/config"
	"github.com/artify/contesthub/internal/domain/contest"
	"github.com/artify/contesthub/internal/domain/payment"
	"github.com/artify/contesthub/internal/http/middlewares"
	"github.com/artify/contesthub/internal/observability"
	"github.com/artify/contesthub/internal/payments"
	"github.com/gin-gonic/gin"
)

type PaymentSessionStore interface {
	Upsert(ctx context.Context, s payment.Session) error
	Confirm(ctx context.Context, sessionID, paymentIntentID string) (payment.Session, error)
}

type RegistrationChecker interface {
	IsRegistered(ctx context.Context, contestID, email string) (bool, error)
}

type PaymentsHandler struct {
	provider      payments.Provider
	sessions      PaymentSessionStore
	contests      ContestReader
	registrations RegistrationChecker
	webhookSecret string
	successURL    string
	cancelURL     string
	prom          *observability.Prom
	popular       *cache.RedisCache
}

func NewPaymentsHandler(
	provider payments.Provider,
	sessions PaymentSessionStore,
	contests ContestReader,
	registrations RegistrationChecker,
	webhookSecret, successURL, cancelURL string,
	prom *observability.Prom,
	popular *cache.RedisCache,
) *PaymentsHandler {
	return &PaymentsHandler{
		provider:      provider,
		sessions:      sessions,
		contests:      contests,
		registrations: registrations,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
		prom:          prom,
		popular:       popular,
	}
}

func (h *PaymentsHandler) countCheckout(outcome string) {
	if h.prom != nil {
		h.prom.CheckoutSessionsTotal.WithLabelValues(outcome).Inc()
	}
}

// CreateCheckout opens a provider checkout session for the contest's entry
// price and records it pending. Replaying a provider session id never
// duplicates the record.
func (h *PaymentsHandler) CreateCheckout(ctx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req payment.CreateCheckoutRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	c, err := h.contests.GetByID(cctx, req.ContestID)

	if err != nil {
		if errors.Is(err, contest.ErrNotFound) {
			RespondNotFound(ctx, "Contest not found")
			return
		}

		RespondInternal(ctx, "Could not create checkout session")
		return
	}

	registered, err := h.registrations.IsRegistered(cctx, c.ID, principal.Email)

	if err != nil {
		RespondInternal(ctx, "Could not create checkout session")
		return
	}

	if registered {
		RespondConflict(ctx, "already_registered", "You are already registered for this contest")
		return
	}

	session, err := h.provider.CreateSession(cctx, payments.CreateSessionRequest{
		Amount:      c.Price,
		Currency:    "usd",
		Description: c.Title,
		ContestID:   c.ID,
		UserEmail:   principal.Email,
		SuccessURL:  h.successURL,
		CancelURL:   h.cancelURL,
	})

	if err != nil {
		h.countCheckout("provider_error")
		RespondUpstream(ctx, "Checkout provider is unavailable")
		return
	}

	err = h.sessions.Upsert(cctx, payment.Session{
		SessionID: session.ID,
		UserEmail: principal.Email,
		ContestID: c.ID,
		Amount:    c.Price,
		Status:    payment.StatusPending,
		CreatedAt: time.Now().UTC(),
	})

	if err != nil {
		RespondInternal(ctx, "Could not create checkout session")
		return
	}

	h.countCheckout("created")

	ctx.JSON(http.StatusCreated, gin.H{
		"sessionId":   session.ID,
		"checkoutUrl": session.URL,
	})
}

// Confirm reconciles a session the client reports as completed. The provider
// is the source of truth for payment state; the local transition is
// idempotent, so retries and double-clicks are harmless.
func (h *PaymentsHandler) Confirm(ctx *gin.Context) {
	var req payment.ConfirmRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	session, err := h.provider.GetSession(cctx, req.SessionID)

	if err != nil {
		if errors.Is(err, payments.ErrSessionNotFound) {
			RespondNotFound(ctx, "Checkout session not found")
			return
		}

		RespondUpstream(ctx, "Checkout provider is unavailable")
		return
	}

	if !session.Paid {
		h.countCheckout("rejected")
		RespondBadRequest(ctx, "Checkout session is not paid", nil)
		return
	}

	h.reconcile(ctx, cctx, session.ID, session.PaymentIntentID)
}

// Webhook is the provider-initiated confirmation path. The signature proves
// the payload came from the provider, so no session re-fetch is needed.
func (h *PaymentsHandler) Webhook(ctx *gin.Context) {
	body, err := io.ReadAll(ctx.Request.Body)

	if err != nil {
		RespondBadRequest(ctx, "Could not read webhook body", nil)
		return
	}

	err = payments.VerifySignature(ctx.GetHeader(payments.SignatureHeader), body, h.webhookSecret, time.Now())

	if err != nil {
		RespondBadRequest(ctx, "Invalid webhook signature", nil)
		return
	}

	event, err := payments.ParseWebhookEvent(body)

	if err != nil {
		RespondBadRequest(ctx, "Invalid webhook payload", nil)
		return
	}

	if event.Type != payments.EventCheckoutCompleted {
		// acknowledge event types we do not handle
		ctx.Status(http.StatusOK)
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	h.reconcile(ctx, cctx, event.SessionID, event.PaymentIntentID)
}

func (h *PaymentsHandler) reconcile(ctx *gin.Context, cctx context.Context, sessionID, paymentIntentID string) {
	confirmed, err := h.sessions.Confirm(cctx, sessionID, paymentIntentID)

	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			RespondNotFound(ctx, "Payment session not found")
			return
		}

		RespondInternal(ctx, "Could not confirm payment")
		return
	}

	if h.popular != nil {
		// a paid admission changes participant counts
		_ = h.popular.Delete(cctx, popularCacheKey)
	}

	h.countCheckout("confirmed")

	ctx.JSON(http.StatusOK, gin.H{
		"sessionId": confirmed.SessionID,
		"status":    confirmed.Status,
		"contestId": confirmed.ContestID,
	})
}
