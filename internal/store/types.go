// Package store is the sole owner of a project's on-disk representation: one
// SQLite database file per project holding evidence, propositions,
// interviews, and scripts. All other packages see this state only through
// Load and Commit — mirroring the teacher's veille/internal/store convention
// of one store type per shard with no caller-visible SQL.
package store

import "time"

// Project is the root record owning the four sub-stores below.
type Project struct {
	ID                   string
	ResearchQuestion     string
	CreatedAt            time.Time
	AgentID              string
	CurrentScriptVersion int
}

// Evidence is a single respondent observation extracted from one interview.
// Evidence is append-only once committed: ids are never reused, even after a
// row is no longer referenced by any live proposition.
type Evidence struct {
	ID             string
	InterviewID    string
	Quote          string
	Interpretation string
	Factor         string
	Mechanism      string
	Outcome        string
	Tags           []string
	Language       string
	Timestamp      time.Time
}

// PropositionStatus is one of the proposition lifecycle states.
type PropositionStatus string

const (
	StatusUntested   PropositionStatus = "untested"
	StatusExploring  PropositionStatus = "exploring"
	StatusConfirmed  PropositionStatus = "confirmed"
	StatusChallenged PropositionStatus = "challenged"
	StatusSaturated  PropositionStatus = "saturated"
	StatusWeak       PropositionStatus = "weak"
	StatusMerged     PropositionStatus = "merged"
)

// Proposition is a causal claim, mutable and versioned in place.
type Proposition struct {
	ID                           string
	Factor                       string
	Mechanism                    string
	Outcome                      string
	Confidence                   float64
	Status                       PropositionStatus
	SupportingEvidence           []string
	ContradictingEvidence        []string
	FirstSeenInterview           string
	LastUpdatedInterview         string
	InterviewsWithoutNewEvidence int
	MergedInto                   string // empty unless Status == StatusMerged
}

// Live reports whether p still participates in active computations — a
// merged proposition is permanently excluded (spec invariant 7).
func (p Proposition) Live() bool {
	return p.Status != StatusMerged
}

// Interview is one processed conversation.
type Interview struct {
	ID                string
	ConversationID    string
	Transcript        string
	ReceivedAt        time.Time
	ScriptVersionUsed *int
	Language          string
}

// SectionInstruction is the interviewing posture assigned to a script
// section.
type SectionInstruction string

const (
	InstructionExplore   SectionInstruction = "EXPLORE"
	InstructionVerify    SectionInstruction = "VERIFY"
	InstructionChallenge SectionInstruction = "CHALLENGE"
	InstructionSaturated SectionInstruction = "SATURATED"
)

// SectionPriority orders sections for presentation and cap truncation.
type SectionPriority string

const (
	PriorityHigh   SectionPriority = "high"
	PriorityMedium SectionPriority = "medium"
	PriorityLow    SectionPriority = "low"
)

// ScriptSection is one proposition-focused block of an InterviewScript.
type ScriptSection struct {
	PropositionID string
	Priority      SectionPriority
	Instruction   SectionInstruction
	MainQuestion  string
	Probes        []string
	Context       string
}

// ScriptMode gates new-proposition generation aggressiveness and Designer's
// instruction bias.
type ScriptMode string

const (
	ModeDivergent  ScriptMode = "divergent"
	ModeConvergent ScriptMode = "convergent"
)

// InterviewScript is an immutable, versioned interview guide. Only one
// version is active per project at any time.
type InterviewScript struct {
	Version                 int
	GeneratedAfterInterview string // empty for v1
	ResearchQuestion        string
	OpeningQuestion         string
	Sections                []ScriptSection
	ClosingQuestion         string
	Wildcard                string
	Mode                    ScriptMode
	ConvergenceScore        float64
	NoveltyRate             float64
	ChangesSummary          string
}

// Snapshot is a consistent, point-in-time read of a project's full state.
type Snapshot struct {
	Project      Project
	Evidence     []Evidence
	Propositions []Proposition
	Interviews   []Interview
	Scripts      []InterviewScript
}

// LatestScript returns the highest-version script in the snapshot, or nil if
// no script has been published yet.
func (s *Snapshot) LatestScript() *InterviewScript {
	var latest *InterviewScript
	for i := range s.Scripts {
		if latest == nil || s.Scripts[i].Version > latest.Version {
			latest = &s.Scripts[i]
		}
	}
	return latest
}

// LiveProposition returns true if p participates in active computations.
func LiveProposition(p Proposition) bool { return p.Status != StatusMerged }
