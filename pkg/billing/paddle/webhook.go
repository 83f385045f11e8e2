package paddle

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
	"github.com/mihaimyh/paddlerelay/pkg/billing"
	"github.com/mihaimyh/paddlerelay/pkg/billing/internal"
)

type webhookResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// handleWebhook verifies, normalizes and stores one Paddle delivery.
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		p.reject(w, http.StatusNotFound, "not_found")
		return
	}

	body, err := internal.ReadBody(w, r, p.bodyLimit)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			p.reject(w, http.StatusRequestEntityTooLarge, "payload_too_large")
			return
		}
		p.reject(w, http.StatusBadRequest, "invalid_body")
		return
	}

	encoding := EncodingNone
	if p.webhookSecret != "" {
		var valid bool
		encoding, valid = Verify(body, r.Header.Get(SignatureHeader), p.webhookSecret)
		if !valid {
			p.logger.Warn("paddle webhook signature verification failed",
				accounts.F("provider", providerName),
				accounts.F("signature_present", r.Header.Get(SignatureHeader) != ""),
			)
			p.reject(w, http.StatusUnauthorized, "invalid_signature")
			return
		}
	}

	payload, err := decodePayload(body)
	if err != nil {
		p.reject(w, http.StatusBadRequest, "invalid_json")
		return
	}

	now := p.now()
	rec := BuildRecord(payload, now)
	eventType := rec.LastEvent

	keys, err := p.accounts.Upsert(r.Context(), rec)
	if err != nil {
		p.logger.Error("failed to store paddle webhook record",
			accounts.F("provider", providerName),
			accounts.F("event_type", eventType),
			accounts.F("keys_written", keys),
			accounts.ErrField(err),
		)
		p.metrics.RecordWebhookEvent(providerName, eventType, "error")
		p.reject(w, http.StatusInternalServerError, "storage_error")
		return
	}

	status := rec.PlanStatus.String()
	if status == "" {
		status = accounts.StatusUnknown
	}
	p.metrics.RecordStatusChange(providerName, status)
	p.metrics.RecordWebhookEvent(providerName, eventType, "success")
	p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(start))

	p.logger.Info("paddle webhook processed",
		accounts.F("provider", providerName),
		accounts.F("event_type", eventType),
		accounts.F("plan_status", status),
		accounts.F("keys_written", keys),
		accounts.F("signature_encoding", encoding.String()),
	)

	if p.onWebhook != nil {
		event := billing.WebhookEvent{
			Provider:          providerName,
			EventType:         eventType,
			ReceivedAt:        now,
			Keys:              keys,
			Record:            rec.Clone(),
			SignatureEncoding: encoding.String(),
		}
		if err := p.onWebhook(r.Context(), event); err != nil {
			p.logger.Warn("paddle webhook callback failed",
				accounts.F("event_type", eventType),
				accounts.ErrField(err),
			)
		}
	}

	_ = internal.WriteJSON(w, http.StatusOK, webhookResponse{OK: true})
}

func (p *Provider) reject(w http.ResponseWriter, code int, errorType string) {
	p.metrics.RecordWebhookError(providerName, errorType)
	_ = internal.WriteJSON(w, code, webhookResponse{OK: false, Error: errorType})
}

// decodePayload parses the body as JSON. An empty body and any JSON value
// that is not an object are treated as {}.
func decodePayload(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Join(billing.ErrInvalidWebhookPayload, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, billing.ErrInvalidWebhookPayload
	}

	payload, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return payload, nil
}
