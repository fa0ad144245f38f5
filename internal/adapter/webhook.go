package adapter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hazyhaar/eidetic/internal/netguard"
)

// maxWebhookBodyBytes bounds one inbound transcript webhook body.
const maxWebhookBodyBytes int64 = 5 << 20 // 5 MiB

// ErrInvalidSignature is returned when an inbound webhook's X-Signature-256
// header does not match its body under the configured secret.
var ErrInvalidSignature = errors.New("adapter: invalid webhook signature")

// TranscriptPayload is the decoded body of one inbound transcript webhook.
type TranscriptPayload struct {
	ProjectID      string `json:"project_id"`
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
	Transcript     string `json:"transcript"`
	Language       string `json:"language"`
}

// WebhookReceiver decodes and authenticates inbound transcript webhooks. A
// zero-value Secret disables signature verification (useful for local
// development, never for a deployed endpoint).
type WebhookReceiver struct {
	Secret string
}

// Receive reads, verifies, and decodes one inbound webhook request. The
// caller is responsible for the HTTP response: Receive only validates and
// parses.
func (w *WebhookReceiver) Receive(r *http.Request) (*TranscriptPayload, error) {
	body, err := netguard.LimitedReadAll(r.Body, maxWebhookBodyBytes)
	if err != nil {
		return nil, fmt.Errorf("adapter: read webhook body: %w", err)
	}

	if !w.verifyHMAC(body, r.Header.Get("X-Signature-256")) {
		return nil, ErrInvalidSignature
	}

	var payload TranscriptPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("adapter: decode webhook body: %w", err)
	}
	if payload.ProjectID == "" || payload.ConversationID == "" || payload.Transcript == "" {
		return nil, fmt.Errorf("adapter: webhook missing required field (project_id, conversation_id, transcript)")
	}
	if payload.Language == "" {
		payload.Language = "en"
	}
	return &payload, nil
}

// verifyHMAC checks signature against body under w.Secret, tolerating the
// GitHub-style "sha256=" prefix. Returns true if verification passes or no
// secret is configured.
func (w *WebhookReceiver) verifyHMAC(body []byte, signature string) bool {
	if w.Secret == "" {
		return true
	}
	if signature == "" {
		return false
	}
	const prefix = "sha256="
	if len(signature) > len(prefix) && signature[:len(prefix)] == prefix {
		signature = signature[len(prefix):]
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(w.Secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), decoded)
}
