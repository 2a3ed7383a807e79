// Package webhook implements the Stripe webhook ingest path of spec.md
// §4.F: signature verification, at-most-once insert, and a single typed
// outbox emit — no business logic runs here. Grounded on the teacher's
// internal/app/httpapi/handler.go writeJSON/writeError idiom, routed
// through go-chi (listed in the teacher's go.mod but never wired to an
// endpoint there).
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/logging"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/metrics"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	domoutbox "github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/outbox"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/stripeevent"
)

// SignatureHeader is the header carrying the provider's HMAC-SHA256
// signature of the raw request body.
const SignatureHeader = "Stripe-Signature"

// Ingestor handles the Stripe webhook HTTP surface.
type Ingestor struct {
	runner  storage.TxRunner
	events  storage.StripeEventStore
	outbox  *outbox.Writer
	secret  []byte
	log     *logging.Logger
}

// NewIngestor constructs an Ingestor verifying against secret.
func NewIngestor(runner storage.TxRunner, events storage.StripeEventStore, writer *outbox.Writer, secret string, log *logging.Logger) *Ingestor {
	return &Ingestor{runner: runner, events: events, outbox: writer, secret: []byte(secret), log: log}
}

// Mount attaches the webhook route to r.
func (h *Ingestor) Mount(r chi.Router) {
	r.Post("/webhooks/stripe", h.handle)
}

func (h *Ingestor) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.InvalidInput("body", "unreadable request body"))
		return
	}

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		writeError(w, http.StatusBadRequest, apperrors.New(apperrors.ErrCodeVerificationFail, "signature verification failed", http.StatusBadRequest))
		return
	}

	var raw struct {
		ID      string    `json:"id"`
		Type    string    `json:"type"`
		Created int64     `json:"created"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || raw.ID == "" {
		writeError(w, http.StatusBadRequest, apperrors.InvalidInput("body", "malformed event envelope"))
		return
	}

	stored, err := h.ingest(r.Context(), stripeevent.Event{
		ExternalID:      raw.ID,
		Type:            raw.Type,
		ExternalCreated: time.Unix(raw.Created, 0).UTC(),
		RawPayload:      body,
	})
	if err != nil {
		h.log.WithError(err).Error("webhook: ingest failed")
		metrics.RecordWebhookEvent(raw.Type, "error")
		writeError(w, apperrors.GetHTTPStatus(err), err)
		return
	}

	result := "accepted"
	if !stored {
		result = "duplicate"
	}
	metrics.RecordWebhookEvent(raw.Type, result)
	writeJSON(w, http.StatusOK, map[string]interface{}{"received": true, "stored": stored})
}

// ingest performs the four-step sequence of spec.md §4.F atomically:
// insert-if-absent, outbox emit, commit. No business logic runs here;
// effect workers (webhook/effects) are what actually act on the event.
func (h *Ingestor) ingest(ctx context.Context, ev stripeevent.Event) (bool, error) {
	var stored bool
	err := h.runner.WithTx(ctx, func(ctx context.Context, q storage.Queryer) error {
		var err error
		stored, err = h.events.InsertIfAbsent(ctx, q, ev)
		if err != nil {
			return err
		}
		if !stored {
			return nil
		}
		_, err = h.outbox.Emit(ctx, q, domoutbox.EventStripeEventReceived, "stripe_event", ev.ExternalID, 1, domoutbox.QueueCriticalPayments, ev)
		return err
	})
	return stored, err
}

// verifySignature checks an HMAC-SHA256 hex digest of the raw body
// against the shared secret. Constant-time comparison avoids a timing
// oracle on the signature check.
func (h *Ingestor) verifySignature(body []byte, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" || len(h.secret) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
