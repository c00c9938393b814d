// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package workflow is the workflow engine (component C6): given a parsed
// request, it evaluates a registry of WorkflowTemplates, ranks the
// candidates, and expands the winner into a WorkflowPlan. It is grounded
// on the teacher's planning_engine.go domain-template table
// (travel/healthcare/finance/generic hints and common-task lists) but
// replaces that file's LLM-driven plan generation with the specification's
// deterministic scoring contract (evaluate/rank/select), and borrows the
// parallel task-grouping idiom of workflow_engine.go's
// ExecuteWorkflowWithParallelSupport for dependency-pattern expansion.
package workflow

import "time"

// Pattern is an orchestration topology for a template's task dependencies.
type Pattern string

const (
	PatternSequential  Pattern = "sequential"
	PatternParallel    Pattern = "parallel"
	PatternHierarchical Pattern = "hierarchical"
	PatternDynamic     Pattern = "dynamic"
)

// Complexity tags a request or template's expected difficulty.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Request is a parsed natural-language request, ready for template
// matching. NLP parsing itself is out of scope (spec.md §1); this struct
// is the boundary shape a caller hands to Evaluate.
type Request struct {
	ID          string
	UserID      string
	RawText     string
	Timestamp   time.Time
	Intent      string
	Confidence  float64
	Entities    map[string]any
	Complexity  Complexity
	Context     *ConversationContext
}

// ConversationContext tracks one ongoing conversation's state, mutated on
// every interaction and evicted by an LRU-with-TTL policy by its owner.
type ConversationContext struct {
	ConversationID   string
	UserID           string
	SessionStart     time.Time
	LastInteraction  time.Time
	InteractionCount int
	Data             map[string]any
	Preferences      UserPreferences
}

// UserPreferences drives evaluate()'s context boosts.
type UserPreferences struct {
	// ExperienceLevel is "beginner", "expert", or "" (no boost either way).
	ExperienceLevel  string
	PreferredPatterns []Pattern
	RecentTemplateIDs []string
}

// WorkflowTemplate is a static, registry-loaded recipe mapping an intent
// and entity pattern to a set of agent roles and a dependency pattern.
type WorkflowTemplate struct {
	ID                 string             `yaml:"id"`
	Name               string             `yaml:"name"`
	Category           string             `yaml:"category"`
	Pattern            Pattern            `yaml:"pattern"`
	RequiredRoles      []string           `yaml:"required_roles"`
	OptionalRoles      []string           `yaml:"optional_roles"`
	Prerequisites      []string           `yaml:"prerequisites"`
	DurationEstimate   time.Duration      `yaml:"-"`
	DurationMinutes    int                `yaml:"duration_minutes"`
	SupportedComplexities []Complexity    `yaml:"supported_complexities"`
	IntentKeywords     []string           `yaml:"intent_keywords"`
	EntityRequirements map[string]bool    `yaml:"entity_requirements"` // slot name -> required
	SuccessCriteria    []string           `yaml:"success_criteria"`
}

// Match is a transient candidate pairing of a request and a template,
// produced by Evaluate and consumed by Rank/Select.
type Match struct {
	Template      *WorkflowTemplate
	Relevance     float64
	Confidence    float64
	Pattern       Pattern
	Duration      time.Duration
	RequiredRoles []string
	Prerequisites []string

	// insertionOrder preserves evaluate()'s registry-iteration order so
	// rank() can break ties deterministically (spec.md §4.7.4).
	insertionOrder int
	// compoundScore is populated by Rank; exported via Score() for callers
	// that want to display it without re-deriving the formula.
	compoundScore float64
}

// Score returns the compound score Rank computed for this match. Zero
// until Rank has run.
func (m Match) Score() float64 { return m.compoundScore }

// AgentAssignment is one role's slot in a WorkflowPlan.
type AgentAssignment struct {
	Role      string
	Priority  int // 1 for PM/BA/SA, 2 otherwise
	Duration  time.Duration
	ModelTier string
}

// DependencyKind distinguishes a pure ordering dependency from one that
// also passes data forward.
type DependencyKind string

const (
	DependencyCompletion DependencyKind = "completion"
	DependencyData       DependencyKind = "data"
)

// TaskDependency is one edge of a WorkflowPlan's dependency DAG.
type TaskDependency struct {
	Dependent    string // role whose task depends on Prerequisite
	Prerequisite string
	Kind         DependencyKind
	Blocking     bool
}

// ResourceRequirement is one resource line item of a WorkflowPlan.
type ResourceRequirement struct {
	Type         string
	Amount       float64
	Unit         string
	CostEstimate float64
	Critical     bool
}

// WorkflowPlan is the concrete instantiation of a template, emitted by
// Select. Invariant: the dependency graph formed by Dependencies is a
// DAG, and every role referenced by a dependency appears in exactly one
// Assignments entry.
type WorkflowPlan struct {
	ID            string
	Pattern       Pattern
	Assignments   []AgentAssignment
	Dependencies  []TaskDependency
	Resources     []ResourceRequirement
	Priority      int
	TemplateID    string
	SourceRequest string // request id this plan was selected for
}

// ValidationResult is the outcome of ValidatePrerequisites.
type ValidationResult struct {
	OK                  bool
	MissingPrereqs      []string
	Warnings            []string
	EstimatedSetupSecs  int
}

// priorityOneRoles are the roles that receive priority 1 in an AgentAssignment,
// per spec.md §4.6 select().
var priorityOneRoles = map[string]bool{
	"pm": true, "project_manager": true,
	"ba": true, "business_analyst": true,
	"sa": true, "solution_architect": true,
}

func assignmentPriority(role string) int {
	if priorityOneRoles[normalizeRole(role)] {
		return 1
	}
	return 2
}

func normalizeRole(role string) string {
	out := make([]byte, 0, len(role))
	for i := 0; i < len(role); i++ {
		c := role[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
