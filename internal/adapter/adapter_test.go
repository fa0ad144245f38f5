package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookReceiver_AcceptsUnsignedWhenNoSecretConfigured(t *testing.T) {
	w := &WebhookReceiver{}
	body := `{"project_id":"p1","conversation_id":"c1","transcript":"hello","agent_id":"a1"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/transcripts", strings.NewReader(body))

	payload, err := w.Receive(req)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if payload.ProjectID != "p1" || payload.ConversationID != "c1" {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.Language != "en" {
		t.Fatalf("Language default = %q, want en", payload.Language)
	}
}

func TestWebhookReceiver_RejectsBadSignature(t *testing.T) {
	w := &WebhookReceiver{Secret: "s3cr3t-value-for-testing"}
	body := `{"project_id":"p1","conversation_id":"c1","transcript":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/transcripts", strings.NewReader(body))
	req.Header.Set("X-Signature-256", "sha256=deadbeef")

	if _, err := w.Receive(req); err != ErrInvalidSignature {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestWebhookReceiver_AcceptsValidSignature(t *testing.T) {
	secret := "s3cr3t-value-for-testing"
	w := &WebhookReceiver{Secret: secret}
	body := `{"project_id":"p1","conversation_id":"c1","transcript":"hello"}`

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/transcripts", strings.NewReader(body))
	req.Header.Set("X-Signature-256", sig)

	payload, err := w.Receive(req)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if payload.ConversationID != "c1" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestWebhookReceiver_RejectsMissingRequiredField(t *testing.T) {
	w := &WebhookReceiver{}
	body := `{"project_id":"p1"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/transcripts", strings.NewReader(body))

	if _, err := w.Receive(req); err == nil {
		t.Fatal("expected error for missing conversation_id/transcript")
	}
}

// loopbackClient returns an http.Client that dials srv's listener whatever
// host a request names, so a publish endpoint with a public hostname passes
// netguard while srv still answers it.
func loopbackClient(srv *httptest.Server) *http.Client {
	addr := srv.Listener.Addr().String()
	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}}
}

func TestHTTPAdapter_PublishScript(t *testing.T) {
	var gotBody publishRequestBody
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewHTTPAdapter("http://agent.example.com/agents/%s/prompt", nil, WithAdapterClient(loopbackClient(srv)))
	err := a.PublishScript(context.Background(), "agent-1", "do the thing")
	if err != nil {
		t.Fatalf("PublishScript: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("method = %q, want PUT", gotMethod)
	}
	if gotPath != "/agents/agent-1/prompt" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody.Prompt != "do the thing" {
		t.Fatalf("prompt = %q", gotBody.Prompt)
	}
}

func TestHTTPAdapter_PublishScript_ServerErrorReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewHTTPAdapter("http://agent.example.com/agents/%s/prompt", nil, WithAdapterClient(loopbackClient(srv)), WithAdapterRetry(0, 0))
	err := a.PublishScript(context.Background(), "agent-1", "do the thing")
	if err == nil {
		t.Fatal("expected error on persistent 500")
	}
}

func TestHTTPAdapter_PublishScript_RejectsPrivateEndpoint(t *testing.T) {
	a := NewHTTPAdapter("http://127.0.0.1:1/agents/%s/prompt", nil)
	err := a.PublishScript(context.Background(), "agent-1", "do the thing")
	if err == nil {
		t.Fatal("expected SSRF rejection for loopback endpoint")
	}
}
