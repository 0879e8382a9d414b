package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/domain/payment"
	"github.com/weddify/binks/internal/gateway/pakasir"
	"github.com/weddify/binks/internal/model"
)

type createPaymentRequest struct {
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
}

type simulatePaymentRequest struct {
	OrderID string `json:"order_id"`
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.OrderID == "" || req.Method == "" {
		respondError(w, r, apperr.BadRequest("order_id and method are required"))
		return
	}

	p, err := h.payments.Create(r.Context(), req.OrderID, req.Method)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// PaymentStatus refreshes a payment from the gateway, by ?payment_id= or ?order_id=.
func (h *Handlers) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		p   *model.Payment
		err error
	)
	switch {
	case q.Get("payment_id") != "":
		p, err = h.payments.CheckStatus(r.Context(), q.Get("payment_id"))
	case q.Get("order_id") != "":
		p, err = h.payments.CheckStatusByOrder(r.Context(), q.Get("order_id"))
	default:
		err = apperr.BadRequest("Either payment_id or order_id is required")
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) SimulatePayment(w http.ResponseWriter, r *http.Request) {
	var req simulatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.OrderID == "" {
		respondError(w, r, apperr.BadRequest("order_id is required"))
		return
	}

	if err := h.payments.Simulate(r.Context(), req.OrderID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "Payment simulation sent"})
}

func (h *Handlers) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, pakasir.Methods())
}

// PakasirWebhook applies a gateway notification. Duplicate deliveries are
// acknowledged without reprocessing; failures release the claim so the
// gateway's retry is handled.
func (h *Handlers) PakasirWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, webhookResponse{Message: "Invalid payload"})
		return
	}

	if h.webhookSecret == "" {
		log.Println("[Webhook] PAKASIR_WEBHOOK_SECRET is not set, skipping signature check")
	} else if !pakasir.VerifySignature(h.webhookSecret, body, r.Header.Get(pakasir.SignatureHeader)) {
		log.Printf("[Webhook] Rejected delivery with bad signature from %s", r.RemoteAddr)
		respondJSON(w, http.StatusUnauthorized, webhookResponse{Message: "Invalid signature"})
		return
	}

	var payload pakasir.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("[Webhook] Invalid payload: %v", err)
		respondJSON(w, http.StatusBadRequest, webhookResponse{Message: "Invalid payload"})
		return
	}
	if payload.OrderID == "" || payload.Status == "" {
		respondJSON(w, http.StatusBadRequest, webhookResponse{Message: apperr.Message(payment.ErrInvalidPayload)})
		return
	}
	log.Printf("[Webhook] Received %s for %s", payload.Status, payload.OrderID)

	first, err := h.guard.FirstDelivery(ctx, payload.OrderID, payload.Status)
	if err != nil {
		log.Printf("[Webhook] Dedup check failed, processing anyway: %v", err)
		first = true
	}
	if !first {
		respondJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "Webhook already processed"})
		return
	}

	if _, err := h.payments.HandleWebhook(ctx, payload, body); err != nil {
		if ferr := h.guard.Forget(ctx, payload.OrderID, payload.Status); ferr != nil {
			log.Printf("[Webhook] Failed to release dedup key for %s: %v", payload.OrderID, ferr)
		}
		kind := apperr.KindOf(err)
		log.Printf("[Webhook] Processing error for %s: %v", payload.OrderID, err)
		respondJSON(w, apperr.HTTPStatus(kind), webhookResponse{Message: apperr.Message(err)})
		return
	}

	log.Printf("[Webhook] Processed successfully for order %s", payload.OrderID)
	respondJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "Webhook processed"})
}
