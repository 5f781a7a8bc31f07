package project

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Phase is the project's coarse lifecycle stage. The machine is
// forward-biased but no transition table is enforced: any phase may be
// (re-)entered, including backward transitions used for recovery.
type Phase string

const (
	PhaseIdeation     Phase = "ideation"
	PhaseRequirements Phase = "requirements"
	PhaseDesign       Phase = "design"
	PhaseDevelopment  Phase = "development"
	PhaseTesting      Phase = "testing"
	PhaseDeployment   Phase = "deployment"
)

// phaseOrder lists phases in forward order, used only for display and for
// the Next helper.
var phaseOrder = []Phase{
	PhaseIdeation, PhaseRequirements, PhaseDesign,
	PhaseDevelopment, PhaseTesting, PhaseDeployment,
}

// Validate checks if the Phase is a known enum value.
func (p Phase) Validate() error {
	for _, known := range phaseOrder {
		if p == known {
			return nil
		}
	}
	return fmt.Errorf("unknown phase: %q", p)
}

// Next returns the forward neighbour of the phase, or the phase itself if
// it is already deployment.
func (p Phase) Next() Phase {
	for i, known := range phaseOrder {
		if p == known && i+1 < len(phaseOrder) {
			return phaseOrder[i+1]
		}
	}
	return p
}

// legacyNoTasks is the display placeholder the original system stored in
// place of a task description. It is accepted on decode only and never
// produced.
const legacyNoTasks = "No tasks currently assigned"

// TaskPointer is a worker's current task descriptor, doubling as the
// scheduling eligibility flag. It is a tagged state — Idle or
// Working(task) — replacing the free-text sentinels (`""`, `"idle"`, a
// display placeholder) the original system compared against.
//
// The JSON form remains a plain string for compatibility: idle encodes as
// "idle", and all three legacy sentinels decode back to Idle.
type TaskPointer struct {
	task    string
	working bool
}

// Idle returns the not-working pointer.
func Idle() TaskPointer {
	return TaskPointer{}
}

// WorkingOn returns a pointer marking the worker busy with task.
// Legacy sentinel strings collapse to Idle.
func WorkingOn(task string) TaskPointer {
	switch task {
	case "", "idle", legacyNoTasks:
		return TaskPointer{}
	}
	return TaskPointer{task: task, working: true}
}

// Working reports whether the pointer marks the worker busy.
func (tp TaskPointer) Working() bool {
	return tp.working
}

// Task returns the task description, or "" when idle.
func (tp TaskPointer) Task() string {
	if !tp.working {
		return ""
	}
	return tp.task
}

// String renders the pointer for logs and display.
func (tp TaskPointer) String() string {
	if !tp.working {
		return "idle"
	}
	return tp.task
}

// MarshalJSON encodes the pointer as its wire string.
func (tp TaskPointer) MarshalJSON() ([]byte, error) {
	return json.Marshal(tp.String())
}

// UnmarshalJSON decodes the wire string, tolerating every legacy idle
// sentinel the original system produced.
func (tp *TaskPointer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("task pointer must be a string: %w", err)
	}
	*tp = WorkingOn(s)
	return nil
}

// AgentContext is one worker's slice of the shared state: what it is
// doing now, what it has queued, and what it is waiting on from others.
type AgentContext struct {
	Current         TaskPointer `json:"currently_working_on"`
	NextTasks       []string    `json:"next_tasks"`
	NeedsFromOthers []string    `json:"needs_from_others"`
}

// clone returns an independent copy of the context.
func (c *AgentContext) clone() *AgentContext {
	if c == nil {
		return nil
	}
	out := &AgentContext{Current: c.Current}
	out.NextTasks = append([]string{}, c.NextTasks...)
	out.NeedsFromOthers = append([]string{}, c.NeedsFromOthers...)
	return out
}

// DocumentRecord is a named living document (PRD, design notes, runbook).
// Records are merge-only: updates override set fields and preserve the
// rest.
type DocumentRecord struct {
	Title     string `json:"title,omitempty"`
	Content   string `json:"content,omitempty"`
	Format    string `json:"format,omitempty"`
	UpdatedBy string `json:"updated_by,omitempty"`
}

// ArtifactRecord is a named code artifact produced by a worker.
type ArtifactRecord struct {
	Content   string `json:"content,omitempty"`
	Language  string `json:"language,omitempty"`
	Summary   string `json:"summary,omitempty"`
	UpdatedBy string `json:"updated_by,omitempty"`
}

// Guideline is a learned rule appended to the knowledge base after a
// failure analysis.
type Guideline struct {
	Trigger   string `json:"trigger"`
	Condition string `json:"condition"`
	Rule      string `json:"rule"`
}

// Validate rejects malformed guidelines. Callers discard and log invalid
// entries rather than failing the producing action.
func (g Guideline) Validate() error {
	if g.Trigger == "" {
		return fmt.Errorf("guideline trigger cannot be empty")
	}
	if g.Rule == "" {
		return fmt.Errorf("guideline rule cannot be empty")
	}
	return nil
}

// KnowledgeBase holds the append-only learned-rule ledger, oldest first.
type KnowledgeBase struct {
	Guidelines []Guideline `json:"guidelines"`
}

// State is the full mutable snapshot of one project. It is persisted as a
// single JSON document keyed by ID. Mutate it only through a Memory.
type State struct {
	ID            string                    `json:"project_id"`
	Name          string                    `json:"name"`
	OwnerID       string                    `json:"owner_id,omitempty"`
	Phase         Phase                     `json:"phase"`
	Agents        map[string]*AgentContext  `json:"agent_context_pointers"`
	Documents     map[string]DocumentRecord `json:"living_documents"`
	Artifacts     map[string]ArtifactRecord `json:"code_artifacts"`
	KnowledgeBase KnowledgeBase             `json:"knowledge_base"`
	LastUpdatedMs int64                     `json:"last_updated_ms"`
}

// NewState creates an empty project in the ideation phase.
func NewState(name string) *State {
	return &State{
		ID:            uuid.New().String(),
		Name:          name,
		Phase:         PhaseIdeation,
		Agents:        make(map[string]*AgentContext),
		Documents:     make(map[string]DocumentRecord),
		Artifacts:     make(map[string]ArtifactRecord),
		KnowledgeBase: KnowledgeBase{Guidelines: []Guideline{}},
	}
}

// Validate checks the state's field values.
func (s *State) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("project ID cannot be empty")
	}
	if err := s.Phase.Validate(); err != nil {
		return fmt.Errorf("invalid phase: %w", err)
	}
	for i, g := range s.KnowledgeBase.Guidelines {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("invalid guideline at index %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a fully independent deep copy of the state. Mutating the
// returned value can never affect the original.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	out := &State{
		ID:            s.ID,
		Name:          s.Name,
		OwnerID:       s.OwnerID,
		Phase:         s.Phase,
		Agents:        make(map[string]*AgentContext, len(s.Agents)),
		Documents:     make(map[string]DocumentRecord, len(s.Documents)),
		Artifacts:     make(map[string]ArtifactRecord, len(s.Artifacts)),
		LastUpdatedMs: s.LastUpdatedMs,
	}

	for role, agentCtx := range s.Agents {
		out.Agents[role] = agentCtx.clone()
	}
	for name, doc := range s.Documents {
		out.Documents[name] = doc
	}
	for name, art := range s.Artifacts {
		out.Artifacts[name] = art
	}
	out.KnowledgeBase.Guidelines = append([]Guideline{}, s.KnowledgeBase.Guidelines...)

	return out
}

// normalize repairs nil maps after JSON decoding so callers can index
// without nil checks.
func (s *State) normalize() {
	if s.Agents == nil {
		s.Agents = make(map[string]*AgentContext)
	}
	if s.Documents == nil {
		s.Documents = make(map[string]DocumentRecord)
	}
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]ArtifactRecord)
	}
	if s.KnowledgeBase.Guidelines == nil {
		s.KnowledgeBase.Guidelines = []Guideline{}
	}
	for _, agentCtx := range s.Agents {
		if agentCtx.NextTasks == nil {
			agentCtx.NextTasks = []string{}
		}
		if agentCtx.NeedsFromOthers == nil {
			agentCtx.NeedsFromOthers = []string{}
		}
	}
}

// Summary is the listing row returned by Store.List.
type Summary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	OwnerID       string `json:"owner_id,omitempty"`
	LastUpdatedMs int64  `json:"last_updated_ms"`
}
