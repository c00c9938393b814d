// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package audit provides the append-only, durable audit trail (component
// C1) consumed by every other component of the orchestration kernel. It
// mirrors the teacher's orchestrator/audit_logger.go batch-writer shape,
// generalized from a single gateway-request schema to the full AuditEntry
// union described by the specification.
package audit

import "time"

// EntryKind classifies the kind of event an AuditEntry records.
type EntryKind string

const (
	KindRequest    EntryKind = "request"
	KindProcessing EntryKind = "processing"
	KindWorkflow   EntryKind = "workflow"
	KindDecision   EntryKind = "decision"
	KindAgentEvent EntryKind = "agent_event"
	KindError      EntryKind = "error"
)

// Severity indicates how significant an entry is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

// Actors identifies who/what an entry pertains to. All fields are optional;
// query filters may match on any subset.
type Actors struct {
	UserID     string `json:"user_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	WorkflowID string `json:"workflow_id,omitempty"`
	AgentID    string `json:"agent_id,omitempty"`
}

// Payload is the discriminated union of well-known typed fields an entry
// may carry, plus a free-form metadata map for extension — replacing the
// teacher's untyped map[string]interface{} "policy_details"/"security
// metrics" blobs with named fields per spec.md §9.
type Payload struct {
	// Request-parsed fields.
	ParsedIntent string  `json:"parsed_intent,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	Entities     map[string]any `json:"entities,omitempty"`

	// Processing fields.
	DurationMs int64    `json:"duration_ms,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`

	// Workflow-decision fields.
	WorkflowDecision string   `json:"workflow_decision,omitempty"`
	Clarifications   []string `json:"clarifications,omitempty"`

	// Error fields.
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Stack        string `json:"stack,omitempty"`

	// Extension point for anything not named above.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Entry is a single append-only audit record (spec.md §3 AuditEntry).
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EntryKind `json:"kind"`
	Severity  Severity  `json:"severity"`
	Actors    Actors    `json:"actors"`
	Action    string    `json:"action"`
	Category  string    `json:"category"`
	Payload   Payload   `json:"payload"`
}

// Filter selects a subset of entries for Query. Zero-valued fields are
// unconstrained; a non-zero Since or Until bounds Timestamp inclusively.
type Filter struct {
	UserID     string
	RequestID  string
	WorkflowID string
	Kind       EntryKind
	Category   string
	Severity   Severity
	Since      time.Time
	Until      time.Time
	Limit      int
}

// ErrorSummary aggregates recent error entries for error_summary().
type ErrorSummary struct {
	Window       time.Duration         `json:"window"`
	CountByType  map[string]int        `json:"count_by_type"`
	CountByOp    map[string]int        `json:"count_by_op"`
	RecentErrors []Entry               `json:"recent_errors"`
}
