package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/eidetic/internal/designer"
	"github.com/hazyhaar/eidetic/internal/pipeline"
	"github.com/hazyhaar/eidetic/internal/store"
)

// Server registers Eidetic's inspection and manual-recovery tools on an MCP
// server. It holds no state beyond what it needs to resolve a project:
// all reads go through the Registry's Load, keeping this package a thin
// view over store.Snapshot rather than a second source of truth.
type Server struct {
	registry  *store.Registry
	publisher pipeline.Publisher
	logger    *slog.Logger
}

// New returns a Server. publisher may be nil, in which case
// eidetic_sweep_publish always fails — callers wanting that tool available
// must supply the same Publisher wired into the Pipeline.
func New(registry *store.Registry, publisher pipeline.Publisher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: registry, publisher: publisher, logger: logger}
}

// Register adds all of Eidetic's tools to srv.
func (s *Server) Register(srv *mcp.Server) {
	s.registerListPropositions(srv)
	s.registerProjectStats(srv)
	s.registerGetScript(srv)
	s.registerSweepPublish(srv)
}

func (s *Server) loadSnapshot(ctx context.Context, projectID string) (*store.Snapshot, error) {
	st, err := s.registry.Get(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: resolve project: %w", err)
	}
	return st.Load(ctx)
}

type propositionView struct {
	ID         string  `json:"id"`
	Factor     string  `json:"factor"`
	Mechanism  string  `json:"mechanism"`
	Outcome    string  `json:"outcome"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
}

func (s *Server) registerListPropositions(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "eidetic_list_propositions",
		Description: "List a project's live propositions with their status and confidence",
		InputSchema: projectIDSchema(),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*projectIDRequest)
		snap, err := s.loadSnapshot(ctx, p.ProjectID)
		if err != nil {
			return nil, err
		}
		out := make([]propositionView, 0, len(snap.Propositions))
		for _, prop := range snap.Propositions {
			if !prop.Live() {
				continue
			}
			out = append(out, propositionView{
				ID:         prop.ID,
				Factor:     prop.Factor,
				Mechanism:  prop.Mechanism,
				Outcome:    prop.Outcome,
				Status:     string(prop.Status),
				Confidence: prop.Confidence,
			})
		}
		return out, nil
	}

	registerTool(srv, tool, endpoint, decodeProjectID)
}

type projectStats struct {
	CountsByStatus       map[string]int `json:"counts_by_status"`
	EvidenceCount        int            `json:"evidence_count"`
	CurrentScriptVersion int            `json:"current_script_version"`
	CurrentMode          string         `json:"current_mode,omitempty"`
}

func (s *Server) registerProjectStats(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "eidetic_project_stats",
		Description: "Get a project's proposition counts by status, evidence count, script version, and interview mode",
		InputSchema: projectIDSchema(),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*projectIDRequest)
		snap, err := s.loadSnapshot(ctx, p.ProjectID)
		if err != nil {
			return nil, err
		}
		stats := projectStats{
			CountsByStatus:       make(map[string]int),
			EvidenceCount:        len(snap.Evidence),
			CurrentScriptVersion: snap.Project.CurrentScriptVersion,
		}
		for _, prop := range snap.Propositions {
			stats.CountsByStatus[string(prop.Status)]++
		}
		if latest := snap.LatestScript(); latest != nil {
			stats.CurrentMode = string(latest.Mode)
		}
		return stats, nil
	}

	registerTool(srv, tool, endpoint, decodeProjectID)
}

type scriptView struct {
	Script            store.InterviewScript `json:"script"`
	InterviewerPrompt string                `json:"interviewer_prompt"`
}

func (s *Server) registerGetScript(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "eidetic_get_script",
		Description: "Get a project's active interview script and its rendered interviewer prompt",
		InputSchema: projectIDSchema(),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*projectIDRequest)
		snap, err := s.loadSnapshot(ctx, p.ProjectID)
		if err != nil {
			return nil, err
		}
		latest := snap.LatestScript()
		if latest == nil {
			return nil, fmt.Errorf("mcpserver: project %s has no published script yet", p.ProjectID)
		}
		return scriptView{
			Script:            *latest,
			InterviewerPrompt: designer.BuildInterviewerPrompt(*latest),
		}, nil
	}

	registerTool(srv, tool, endpoint, decodeProjectID)
}

type sweepPublishResult struct {
	Status  string `json:"status"`
	Version int    `json:"version"`
}

func (s *Server) registerSweepPublish(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "eidetic_sweep_publish",
		Description: "Re-publish a project's active interview script to its conversational agent; the manual recovery path when an automatic publish failed",
		InputSchema: projectIDSchema(),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*projectIDRequest)
		if s.publisher == nil {
			return nil, fmt.Errorf("mcpserver: no publisher configured")
		}
		snap, err := s.loadSnapshot(ctx, p.ProjectID)
		if err != nil {
			return nil, err
		}
		latest := snap.LatestScript()
		if latest == nil {
			return nil, fmt.Errorf("mcpserver: project %s has no published script yet", p.ProjectID)
		}
		prompt := designer.BuildInterviewerPrompt(*latest)
		if err := s.publisher.PublishScript(ctx, snap.Project.AgentID, prompt); err != nil {
			return nil, fmt.Errorf("mcpserver: sweep publish: %w", err)
		}
		s.logger.Info("sweep published script", "project_id", p.ProjectID, "version", latest.Version)
		return sweepPublishResult{Status: "published", Version: latest.Version}, nil
	}

	registerTool(srv, tool, endpoint, decodeProjectID)
}
