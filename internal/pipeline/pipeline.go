// Package pipeline is the single entry point for turning one interview
// transcript into committed state and, best-effort, a republished script —
// the ingest → analyze → reconcile → redesign → publish loop spec.md §4.6
// describes, grounded on veille.Service.processJob's dispatch shape.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/eidetic/internal/analyst"
	"github.com/hazyhaar/eidetic/internal/config"
	"github.com/hazyhaar/eidetic/internal/designer"
	"github.com/hazyhaar/eidetic/internal/reconciler"
	"github.com/hazyhaar/eidetic/internal/store"
)

// Publisher delivers a freshly generated interview script to the
// conversational agent running the interview. internal/adapter implements
// this over HTTP; tests use a fake.
type Publisher interface {
	PublishScript(ctx context.Context, agentID, promptText string) error
}

// EventScriptUpdated is published after a regenerated script commits; every
// other event kind comes from the Reconciler's Result.
const EventScriptUpdated reconciler.EventKind = "script_updated"

// EventPublisher fans a Reconciler's ordered events out to subscribers.
// internal/eventbus implements this.
type EventPublisher interface {
	Publish(projectID string, events []reconciler.Event)
}

// Pipeline wires one project's Store, through the Analyst, Reconciler, and
// Designer, to a Publisher and EventPublisher.
type Pipeline struct {
	registry   *store.Registry
	analyst    *analyst.Analyst
	reconciler *reconciler.Reconciler
	designer   *designer.Designer
	publisher  Publisher
	events     EventPublisher
	cfg        config.Config
	logger     *slog.Logger

	locks *projectLocks
}

// Option configures a Pipeline during construction.
type Option func(*Pipeline)

// WithPublisher sets the Publisher used to deliver newly generated scripts.
// Without one, a successfully generated script still commits but is never
// delivered (fine for tests, not for production).
func WithPublisher(p Publisher) Option {
	return func(pl *Pipeline) { pl.publisher = p }
}

// WithEventPublisher sets the EventPublisher notified after every commit.
func WithEventPublisher(e EventPublisher) Option {
	return func(pl *Pipeline) { pl.events = e }
}

// New returns a Pipeline over registry that runs an, rc, and d for each
// ingested transcript.
func New(registry *store.Registry, an *analyst.Analyst, rc *reconciler.Reconciler, d *designer.Designer, cfg config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		registry:   registry,
		analyst:    an,
		reconciler: rc,
		designer:   d,
		cfg:        cfg,
		logger:     logger,
		locks:      newProjectLocks(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestResult is Ingest's outcome. ScriptGenerationFailed and PublishError
// are non-fatal: the interview's analysis still committed even if the
// Designer or the Publisher failed (spec.md §4.6 step 6 — these never roll
// back the committed interview).
type IngestResult struct {
	InterviewID            string
	Duplicate              bool
	InvalidDiff            bool
	InvalidDiffDetails     string
	NewScriptVersion       int
	ScriptGenerationFailed string
	PublishError           string
}

// Ingest processes one transcript end to end. A repeat call with the same
// conversationID for the same project is a no-op that returns the original
// interview id (spec.md §4.6 step 1 — webhook retries must not double
// count).
func (p *Pipeline) Ingest(ctx context.Context, projectID, conversationID, transcript, language string) (*IngestResult, error) {
	st, err := p.registry.Get(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve project %s: %w", projectID, err)
	}

	if existing, err := st.GetInterviewByConversationID(ctx, conversationID); err == nil {
		return &IngestResult{InterviewID: existing.ID, Duplicate: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("pipeline: idempotency check: %w", err)
	}

	lock := p.locks.get(projectID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check now that the lock is held: a concurrent Ingest for the same
	// conversation may have committed between the check above and here.
	if existing, err := st.GetInterviewByConversationID(ctx, conversationID); err == nil {
		return &IngestResult{InterviewID: existing.ID, Duplicate: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("pipeline: idempotency recheck: %w", err)
	}

	if p.cfg.MaxInterviewDurationMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.InterviewTimeout())
		defer cancel()
	}

	snap, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load snapshot: %w", err)
	}

	diff, err := p.analyst.Analyze(ctx, transcript, "pending", snap)
	if err != nil {
		return nil, fmt.Errorf("pipeline: analyze: %w", err)
	}

	recResult, err := p.reconciler.Apply(ctx, st, reconciler.Input{
		ConversationID: conversationID,
		Transcript:     transcript,
		Language:       language,
		Snapshot:       snap,
		Diff:           diff,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: reconcile: %w", err)
	}

	if p.events != nil {
		p.events.Publish(projectID, recResult.Events)
	}

	result := &IngestResult{
		InterviewID:        recResult.InterviewID,
		InvalidDiff:        recResult.InvalidDiff,
		InvalidDiffDetails: recResult.Details,
	}

	p.regenerateAndPublish(ctx, st, projectID, recResult, result)

	return result, nil
}

// regenerateAndPublish runs the Designer and Publisher steps. Failures here
// are recorded on result, never returned as an error — the interview's
// analysis has already committed and must not be undone by a downstream
// failure (spec.md §4.6 step 6).
//
// convergence_score and novelty_rate are recomputed here from committed
// state rather than trusted from the Analyst's self-reported diff.Metrics:
// an LLM can report arbitrary numbers, but spec.md §4.4 step 8 defines both
// as exact formulas and §8 makes the resulting mode gate a testable
// invariant.
func (p *Pipeline) regenerateAndPublish(ctx context.Context, st *store.Store, projectID string, recResult *reconciler.Result, result *IngestResult) {
	snap, err := st.Load(ctx)
	if err != nil {
		result.ScriptGenerationFailed = fmt.Sprintf("reload snapshot: %v", err)
		return
	}

	convergenceScore := analyst.ConvergenceScore(statusCounts(snap.Propositions))
	noveltyRate := analyst.NoveltyRate(recResult.EvidenceTriggeringNewPropositions, recResult.NewEvidenceCount)
	mode := analyst.Mode(convergenceScore, noveltyRate, analyst.ModeThresholds{
		ConvergenceScoreThreshold: p.cfg.ConvergenceScoreThreshold,
		NoveltyRateThreshold:      p.cfg.NoveltyRateThreshold,
	})

	script, err := p.designer.UpdateScript(ctx, designer.ScriptInput{
		ResearchQuestion:        snap.Project.ResearchQuestion,
		LivePropositions:        liveOnly(snap.Propositions),
		PreviousScript:          snap.LatestScript(),
		GeneratedAfterInterview: recResult.InterviewID,
		NextVersion:             snap.Project.CurrentScriptVersion + 1,
		ConvergenceScore:        convergenceScore,
		NoveltyRate:             noveltyRate,
		Mode:                    store.ScriptMode(mode),
	})
	if err != nil {
		result.ScriptGenerationFailed = err.Error()
		p.logger.Warn("designer failed to regenerate script", "project_id", projectID, "error", err)
		return
	}

	if err := st.Commit(ctx, store.Diff{NewScript: script}); err != nil {
		result.ScriptGenerationFailed = fmt.Sprintf("commit script: %v", err)
		p.logger.Warn("failed to commit regenerated script", "project_id", projectID, "error", err)
		return
	}
	result.NewScriptVersion = script.Version
	if p.events != nil {
		p.events.Publish(projectID, []reconciler.Event{{Kind: EventScriptUpdated, Payload: map[string]any{
			"version": script.Version, "generated_after_interview": script.GeneratedAfterInterview,
		}}})
	}

	if p.publisher == nil {
		return
	}
	prompt := designer.BuildInterviewerPrompt(*script)
	if err := p.publisher.PublishScript(ctx, snap.Project.AgentID, prompt); err != nil {
		result.PublishError = err.Error()
		p.logger.Warn("failed to publish script", "project_id", projectID, "error", err)
	}
}

// statusCounts tallies props by status for analyst.ConvergenceScore.
func statusCounts(props []store.Proposition) map[string]int {
	counts := make(map[string]int, len(props))
	for _, p := range props {
		counts[string(p.Status)]++
	}
	return counts
}

func liveOnly(props []store.Proposition) []store.Proposition {
	out := make([]store.Proposition, 0, len(props))
	for _, p := range props {
		if p.Live() {
			out = append(out, p)
		}
	}
	return out
}
