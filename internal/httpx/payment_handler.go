package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-payments/internal/checkout"
	"github.com/ariefcatur/go-shop-payments/internal/fulfillment"
	"github.com/ariefcatur/go-shop-payments/internal/gateway"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 20

// msgInternal is the only body a 500 carries; the cause goes to the log.
const msgInternal = "internal server error"

type SessionCreator interface {
	Create(ctx context.Context, userID string, shipping gateway.Address) (string, error)
}

type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signature string) (fulfillment.Result, error)
}

type PaymentLister interface {
	ListPayments(ctx context.Context, userID string) ([]orders.Payment, error)
}

type PaymentHandler struct {
	Checkout SessionCreator
	Webhooks WebhookProcessor
	Payments PaymentLister
	Auth     func(http.Handler) http.Handler
	Log      *slog.Logger
}

type ProceedToPayReq struct {
	ShippingAddress gateway.Address `json:"shippingAddress"`
}

type ProceedToPayResp struct {
	ID string `json:"id"`
}

type WebhookResp struct {
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
}

func (h *PaymentHandler) Register(r chi.Router) {
	r.Route("/payment", func(r chi.Router) {
		r.Post("/webhook", h.webhook)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth)
			r.Post("/proceedToPay", h.proceedToPay)
			r.Get("/", h.listPayments)
		})
	})
}

func (h *PaymentHandler) proceedToPay(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	var req ProceedToPayReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, message("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := h.Checkout.Create(ctx, uid, req.ShippingAddress)
	if errors.Is(err, checkout.ErrEmptyCart) {
		writeJSON(w, http.StatusBadRequest, message(err.Error()))
		return
	}
	if err != nil {
		h.Log.ErrorContext(ctx, "create checkout session", "user_id", uid, "err", err)
		writeJSON(w, http.StatusInternalServerError, message(msgInternal))
		return
	}
	writeJSON(w, http.StatusOK, ProceedToPayResp{ID: id})
}

// webhook hands the body to verification byte for byte.
func (h *PaymentHandler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message("unreadable body"))
		return
	}

	res, err := h.Webhooks.Process(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, gateway.ErrAuthentication):
		h.Log.WarnContext(r.Context(), "webhook rejected", "err", err)
		writeJSON(w, http.StatusBadRequest, message("Webhook Error: "+err.Error()))
		return
	case errors.Is(err, gateway.ErrMalformedEvent):
		h.Log.WarnContext(r.Context(), "webhook rejected", "err", err)
		writeJSON(w, http.StatusBadRequest, message("Webhook Error: "+gateway.ErrMalformedEvent.Error()))
		return
	case errors.Is(err, fulfillment.ErrUnhandledEvent):
		writeJSON(w, http.StatusBadRequest, message("Unhandled event type"))
		return
	case errors.Is(err, fulfillment.ErrInvalidEvent):
		writeJSON(w, http.StatusBadRequest, message(err.Error()))
		return
	case errors.Is(err, fulfillment.ErrInProgress):
		writeJSON(w, http.StatusConflict, message(err.Error()))
		return
	case err != nil:
		h.Log.ErrorContext(r.Context(), "webhook fulfillment", "err", err)
		writeJSON(w, http.StatusInternalServerError, message(msgInternal))
		return
	}

	switch res.Outcome {
	case fulfillment.OutcomeNothingToDo:
		w.WriteHeader(http.StatusNoContent)
	case fulfillment.OutcomeAlreadyFulfilled:
		writeJSON(w, http.StatusOK, WebhookResp{Message: "Order already placed", OrderID: res.OrderID})
	default:
		writeJSON(w, http.StatusOK, WebhookResp{Message: "Payment successful and order placed", OrderID: res.OrderID})
	}
}

func (h *PaymentHandler) listPayments(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Payments.ListPayments(ctx, uid)
	if err != nil {
		h.Log.ErrorContext(ctx, "list payments", "user_id", uid, "err", err)
		writeJSON(w, http.StatusInternalServerError, message(msgInternal))
		return
	}
	if ps == nil {
		ps = []orders.Payment{}
	}
	writeJSON(w, http.StatusOK, ps)
}
