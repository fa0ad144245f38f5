package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/eidetic/internal/store"
)

var testMCPImpl = &mcp.Implementation{Name: "eidetic-test", Version: "0.1.0"}

func newTestRegistry(t *testing.T) (*store.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg := store.NewRegistry(dir, nil)
	t.Cleanup(func() { reg.Close() })

	ctx := context.Background()
	st, err := reg.Create(ctx, "proj1", "does X cause Y?", "agent-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	err = st.Commit(ctx, store.Diff{
		NewEvidence: []store.Evidence{
			{ID: "E001", Quote: "it really helped", Factor: "X", Mechanism: "m", Outcome: "Y"},
		},
		NewPropositions: []store.Proposition{
			{ID: "P001", Factor: "X", Mechanism: "m", Outcome: "Y", Confidence: 0.8, Status: store.StatusConfirmed, SupportingEvidence: []string{"E001"}},
			{ID: "P002", Factor: "A", Mechanism: "m2", Outcome: "B", Confidence: 0.1, Status: store.StatusMerged, MergedInto: "P001"},
		},
		NewScript: &store.InterviewScript{
			Version:          1,
			ResearchQuestion: "does X cause Y?",
			OpeningQuestion:  "Tell me about your experience.",
			Mode:             store.ModeDivergent,
		},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return reg, "proj1"
}

type fakePublisher struct {
	calls int
	err   error
}

func (f *fakePublisher) PublishScript(ctx context.Context, agentID, promptText string) error {
	f.calls++
	return f.err
}

func mcpSession(t *testing.T, srv *Server) *mcp.ClientSession {
	t.Helper()
	server := mcp.NewServer(testMCPImpl, nil)
	srv.Register(server)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = server.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) tool error: %+v", name, result.Content)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestListPropositions_OnlyReturnsLive(t *testing.T) {
	reg, projectID := newTestRegistry(t)
	srv := New(reg, nil, nil)
	session := mcpSession(t, srv)

	text := mcpCallTool(t, session, "eidetic_list_propositions", map[string]any{"project_id": projectID})

	var props []propositionView
	if err := json.Unmarshal([]byte(text), &props); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(props) != 1 || props[0].ID != "P001" {
		t.Fatalf("props = %+v, want only P001", props)
	}
}

func TestProjectStats_CountsByStatus(t *testing.T) {
	reg, projectID := newTestRegistry(t)
	srv := New(reg, nil, nil)
	session := mcpSession(t, srv)

	text := mcpCallTool(t, session, "eidetic_project_stats", map[string]any{"project_id": projectID})

	var stats projectStats
	if err := json.Unmarshal([]byte(text), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.CountsByStatus["confirmed"] != 1 || stats.CountsByStatus["merged"] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.EvidenceCount != 1 {
		t.Fatalf("evidence count = %d, want 1", stats.EvidenceCount)
	}
	if stats.CurrentMode != "divergent" {
		t.Fatalf("mode = %q, want divergent", stats.CurrentMode)
	}
}

func TestGetScript_ReturnsActiveScriptAndPrompt(t *testing.T) {
	reg, projectID := newTestRegistry(t)
	srv := New(reg, nil, nil)
	session := mcpSession(t, srv)

	text := mcpCallTool(t, session, "eidetic_get_script", map[string]any{"project_id": projectID})

	var view scriptView
	if err := json.Unmarshal([]byte(text), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.Script.Version != 1 {
		t.Fatalf("script version = %d, want 1", view.Script.Version)
	}
	if view.InterviewerPrompt == "" {
		t.Fatal("expected non-empty rendered prompt")
	}
}

func TestSweepPublish_CallsPublisherWithActiveScript(t *testing.T) {
	reg, projectID := newTestRegistry(t)
	pub := &fakePublisher{}
	srv := New(reg, pub, nil)
	session := mcpSession(t, srv)

	text := mcpCallTool(t, session, "eidetic_sweep_publish", map[string]any{"project_id": projectID})

	var result sweepPublishResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Status != "published" || result.Version != 1 {
		t.Fatalf("result = %+v", result)
	}
	if pub.calls != 1 {
		t.Fatalf("publisher calls = %d, want 1", pub.calls)
	}
}

func TestSweepPublish_NoPublisherConfiguredFails(t *testing.T) {
	reg, projectID := newTestRegistry(t)
	srv := New(reg, nil, nil)
	session := mcpSession(t, srv)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "eidetic_sweep_publish",
		Arguments: map[string]any{"project_id": projectID},
	})
	if err != nil {
		t.Fatalf("CallTool transport error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool-level error when no publisher is configured")
	}
}

func TestListPropositions_UnknownProjectFails(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := New(reg, nil, nil)
	session := mcpSession(t, srv)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "eidetic_list_propositions",
		Arguments: map[string]any{"project_id": "does-not-exist"},
	})
	if err != nil {
		t.Fatalf("CallTool transport error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool-level error for unknown project")
	}
}
