package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/eidetic/internal/adapter"
	"github.com/hazyhaar/eidetic/internal/analyst"
	"github.com/hazyhaar/eidetic/internal/config"
	"github.com/hazyhaar/eidetic/internal/designer"
	"github.com/hazyhaar/eidetic/internal/eventbus"
	"github.com/hazyhaar/eidetic/internal/oracle"
	"github.com/hazyhaar/eidetic/internal/pipeline"
	"github.com/hazyhaar/eidetic/internal/reconciler"
	"github.com/hazyhaar/eidetic/internal/store"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	reg := store.NewRegistry(filepath.Join(t.TempDir(), "data"), nil)
	t.Cleanup(func() { reg.Close() })

	ctx := context.Background()
	projectID := "proj1"
	if _, err := reg.Create(ctx, projectID, "does X cause Y?", "agent-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	fake := &oracle.FakeOracle{Responses: []oracle.FakeResponse{{Value: map[string]any{}}}}
	an := analyst.New(fake, analyst.Config{Model: "test"}, nil)
	rc := reconciler.New(reconciler.Config{}, nil)
	des := designer.New(fake, designer.Config{Model: "test"}, nil)

	bus := eventbus.New(nil)
	t.Cleanup(bus.Close)

	pl := pipeline.New(reg, an, rc, des, config.Defaults(), nil, pipeline.WithEventPublisher(bus))
	recv := &adapter.WebhookReceiver{}

	return New(recv, pl, bus, nil), projectID
}

func TestHandleWebhook_AcceptsAndIngestsInBackground(t *testing.T) {
	srv, projectID := newTestServer(t)

	ch, unsubscribe := srv.events.Subscribe(projectID)
	defer unsubscribe()

	body := `{"project_id":"` + projectID + `","conversation_id":"c1","transcript":"hello there"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/transcripts", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ingestion event")
	}
}

func TestHandleWebhook_RejectsInvalidPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/transcripts", strings.NewReader(`{"project_id":"p1"}`))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleEvents_StreamsPublishedEvents(t *testing.T) {
	srv, projectID := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/projects/"+projectID+"/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.Router().ServeHTTP(rec, req)
		close(done)
	}()

	// Give the handler time to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	srv.events.Publish(projectID, []reconciler.Event{{Kind: reconciler.EventNewEvidence, Payload: map[string]any{"id": "e1"}}})

	// Give the handler time to write and flush the event before ending the
	// stream; cancel is what makes the handler return.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(rec.Body.String(), "event: new_evidence") {
		t.Fatalf("response missing expected SSE event, got: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"id":"e1"`) {
		t.Fatalf("response missing event payload, got: %s", rec.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("status field = %q", resp["status"])
	}
}
