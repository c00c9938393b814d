// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package workerpool manages a fleet of subprocess workers per role
// (component C5). Each worker is an independent OS process communicating
// over line-delimited JSON on stdin/stdout, in the spirit of the MCP stdio
// transport in goa-ai's runtime package, generalized from a single
// request/response RPC session into a long-lived task/result/heartbeat
// protocol against a pool of many such processes.
package workerpool

import (
	"encoding/json"
	"time"
)

// Status is a worker process's position in the per-process state machine:
// starting -> idle <-> busy; any state may move to error; error ->
// terminated via cleanup; idle/busy -> unresponsive after missed
// heartbeats; unresponsive -> terminated via the sweeper.
type Status string

const (
	StatusStarting     Status = "starting"
	StatusIdle         Status = "idle"
	StatusBusy         Status = "busy"
	StatusError        Status = "error"
	StatusUnresponsive Status = "unresponsive"
	StatusTerminated   Status = "terminated"
)

// MessageType discriminates the wire protocol's line-delimited JSON frames.
type MessageType string

const (
	MessageTask      MessageType = "task"
	MessageResult    MessageType = "result"
	MessageHeartbeat MessageType = "heartbeat"
	MessageShutdown  MessageType = "shutdown"
	// MessageReady is a wire-protocol extension (spec.md §4.5 "Extensions
	// are tolerated"): the handshake frame a worker writes to stdout once
	// it has finished initializing.
	MessageReady MessageType = "ready"
)

// wireMessage is the envelope read from or written to a worker's stdio.
// Extensions are tolerated: unknown fields are ignored on decode rather
// than rejected; only task_data and result are kept as raw JSON.
type wireMessage struct {
	Type     MessageType     `json:"type"`
	TaskID   string          `json:"task_id,omitempty"`
	TaskData json.RawMessage `json:"task_data,omitempty"`
	Success  bool            `json:"success,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Task is one unit of work sent to a worker over stdin.
type Task struct {
	TaskID   string          `json:"task_id"`
	TaskData json.RawMessage `json:"task_data"`
}

// TaskResult is the worker's response read from stdout.
type TaskResult struct {
	TaskID  string          `json:"task_id"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Metrics accumulates per-process counters, mutated only under the
// process's own lock per spec.md §5's shared-resource policy.
type Metrics struct {
	TasksCompleted   int64         `json:"tasks_completed"`
	TasksFailed      int64         `json:"tasks_failed"`
	TotalTaskTime    time.Duration `json:"total_task_time"`
	MissedHeartbeats int           `json:"missed_heartbeats"`
	LastTaskAt       time.Time     `json:"last_task_at,omitempty"`
}

// WorkerProcess is a point-in-time snapshot of one subprocess worker,
// returned by status/status_all and persisted by save_state.
type WorkerProcess struct {
	ProcessID   string          `json:"process_id"`
	Role        string          `json:"role"`
	InstanceID  string          `json:"instance_id"`
	ModelTier   string          `json:"model_tier"`
	Status      Status          `json:"status"`
	Config      json.RawMessage `json:"config,omitempty"`
	CurrentTask string          `json:"current_task,omitempty"`
	Metrics     Metrics         `json:"metrics"`
	PID         int             `json:"pid"`
	SpawnedAt   time.Time       `json:"spawned_at"`
	SavedAt     time.Time       `json:"saved_at,omitempty"`
}

// HeartbeatConfig enables and tunes the optional heartbeat protocol.
type HeartbeatConfig struct {
	Enabled   bool
	Interval  time.Duration
	MaxMissed int
}

// Config bounds a Pool's behavior. Zero-valued fields fall back to the
// defaults documented alongside each constant below.
type Config struct {
	MaxConcurrent    int
	HandshakeTimeout time.Duration
	TaskTimeout      time.Duration
	SweepInterval    time.Duration
	Heartbeat        HeartbeatConfig
}

// Defaults mirror spec.md §4.5's stated values.
const (
	DefaultTaskTimeout   = 300 * time.Second
	DefaultSweepInterval = 10 * time.Second
	GracefulShutdownWait = 10 * time.Second
	SIGTERMWait          = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 30 * time.Second
	}
	return c
}
