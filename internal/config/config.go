// Package config holds Eidetic's tunables: the convergence/merge/prune
// thresholds spec.md §6 names plus per-agent (Designer/Analyst/Synthesizer)
// model settings. There is no file or environment loader here — wiring
// Config from flags/env is cmd/eidetic's job, same split the teacher keeps
// between veille.Config (data) and cmd/chrc (where it's populated).
package config

import "time"

// AgentSettings is the model/temperature pair used for one Oracle-backed
// role.
type AgentSettings struct {
	Model       string
	Temperature float64
}

// Config is the full set of tunables threaded through Designer, Analyst,
// Reconciler, Pipeline, and the Oracle.
type Config struct {
	// ConvergenceScoreThreshold and NoveltyRateThreshold gate divergent vs.
	// convergent Designer mode (spec.md §4.4 step 8 / §8 boundary-inclusive
	// comparisons).
	ConvergenceScoreThreshold float64
	NoveltyRateThreshold      float64

	// MergeOverlapThreshold is the Jaccard similarity at or above which two
	// live propositions are proposed for merge (spec.md §4.4 step 6).
	MergeOverlapThreshold float64

	// PruneConfidenceThreshold and PruneMinInterviews gate demotion to weak
	// (spec.md §4.4 step 6).
	PruneConfidenceThreshold float64
	PruneMinInterviews       int

	// MaxPropositionsInScript caps how many sections one InterviewScript
	// carries (spec.md §4.3).
	MaxPropositionsInScript int

	// MaxInterviewDurationMinutes bounds how long one ingestion may run
	// before Pipeline cancels it (spec.md §4.2).
	MaxInterviewDurationMinutes int

	// DataDir is the root directory for per-project SQLite shards.
	DataDir string

	Designer    AgentSettings
	Analyst     AgentSettings
	Synthesizer AgentSettings
}

// Defaults returns spec.md §6's default tunables.
func Defaults() Config {
	return Config{
		ConvergenceScoreThreshold:   0.6,
		NoveltyRateThreshold:        0.15,
		MergeOverlapThreshold:       0.6,
		PruneConfidenceThreshold:    0.15,
		PruneMinInterviews:          3,
		MaxPropositionsInScript:     8,
		MaxInterviewDurationMinutes: 10,
		DataDir:                     "data",
		Designer:                    AgentSettings{Model: "gpt-4o", Temperature: 0.7},
		Analyst:                     AgentSettings{Model: "gpt-4o", Temperature: 0.2},
		Synthesizer:                 AgentSettings{Model: "gpt-4o", Temperature: 0.3},
	}
}

// InterviewTimeout converts MaxInterviewDurationMinutes to a time.Duration
// for context.WithTimeout.
func (c Config) InterviewTimeout() time.Duration {
	return time.Duration(c.MaxInterviewDurationMinutes) * time.Minute
}
