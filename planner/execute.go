// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/axonkernel/orchestrator/audit"
	"github.com/axonkernel/orchestrator/kernelerr"
	"github.com/axonkernel/orchestrator/llm"
	"github.com/axonkernel/orchestrator/shared/logger"
	"github.com/axonkernel/orchestrator/workerpool"
	"github.com/axonkernel/orchestrator/workflow"
)

// RetryBackoff implements §7's Transient retry schedule: 1s, 2s, 4s,
// ..., capped at 60s, up to MaxRetries retries after the first attempt.
var RetryBackoff = []time.Duration{
	1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
	16 * time.Second, 32 * time.Second, 60 * time.Second,
}

// DefaultMaxRetries bounds how many times a Transient task failure is
// retried before the task (and, if unrecoverable, the execution) fails.
const DefaultMaxRetries = 3

// Dispatcher is the subset of workerpool.Pool the executor needs: find or
// grow capacity for a role, and hand a task to a specific process.
type Dispatcher interface {
	StatusAll() []workerpool.WorkerProcess
	Spawn(ctx context.Context, role, instanceID, modelTier string, config json.RawMessage) (workerpool.WorkerProcess, error)
	Send(ctx context.Context, processID string, task workerpool.Task) (workerpool.TaskResult, error)
}

// ModelCaller is the subset of llm.Router the executor needs to route a
// task's model call through C4.
type ModelCaller interface {
	Call(ctx context.Context, call llm.Call, taskID string) (llm.CallResult, error)
}

// Executor drives a WorkflowExecution's tasks to completion against a
// Dispatcher (C5) and, when configured, a ModelCaller (C4).
type Executor struct {
	Pool              Dispatcher
	Router            ModelCaller
	AuditSink         audit.Store
	Log               *logger.Logger
	MaxConcurrentPerRole int
	MaxRetries        int

	mu         sync.Mutex
	executions map[string]*WorkflowExecution
	cancelled  map[string]bool
}

// NewExecutor wires an Executor. router may be nil if tasks don't need a
// model call routed through C4 (e.g. a dry run or a non-LLM role).
func NewExecutor(pool Dispatcher, router ModelCaller, auditSink audit.Store, log *logger.Logger) *Executor {
	return &Executor{
		Pool:                 pool,
		Router:               router,
		AuditSink:            auditSink,
		Log:                  log,
		MaxConcurrentPerRole: 3,
		MaxRetries:           DefaultMaxRetries,
		executions:           make(map[string]*WorkflowExecution),
		cancelled:            make(map[string]bool),
	}
}

func (e *Executor) audit(ctx context.Context, action string, severity audit.Severity, meta map[string]any) {
	if e.AuditSink == nil {
		return
	}
	_, _ = e.AuditSink.Record(ctx, audit.Entry{
		Kind:     audit.KindWorkflow,
		Severity: severity,
		Action:   action,
		Category: "planner",
		Payload:  audit.Payload{Metadata: meta},
	})
}

// Execute creates a WorkflowExecution for plan/execPlan and drives it to
// completion, per spec.md §4.7.3.
func (e *Executor) Execute(ctx context.Context, plan *workflow.WorkflowPlan, execPlan *ExecutionPlan) (*WorkflowExecution, error) {
	exec := &WorkflowExecution{
		ID:             uuid.New().String(),
		PlanID:         plan.ID,
		State:          ExecPending,
		CompletedTasks: make(map[string]bool),
		InFlightTasks:  make(map[string]bool),
		Results:        make(map[string]TaskExecResult),
		StartedAt:      planStartTime(),
		plan:           plan,
		execPlan:       execPlan,
	}
	e.mu.Lock()
	e.executions[exec.ID] = exec
	e.mu.Unlock()

	e.audit(ctx, "execution_started", audit.SeverityInfo, map[string]any{"execution_id": exec.ID, "plan_id": plan.ID})
	return e.runLoop(ctx, exec)
}

// runLoop drives exec's task DAG to completion (or cancellation),
// dispatching every ready task and recording a checkpoint after each
// completion. Shared by Execute (fresh runs) and Resume (continuing a
// checkpointed run).
func (e *Executor) runLoop(ctx context.Context, exec *WorkflowExecution) (*WorkflowExecution, error) {
	exec.State = ExecRunning
	execPlan := exec.execPlan

	order := taskOrder(execPlan.Tasks)
	for e.remaining(exec, order) {
		if e.isCancelled(exec.ID) {
			exec.State = execCancelling
			if len(exec.InFlightTasks) == 0 {
				exec.State = ExecCancelled
				exec.EndedAt = planStartTime()
				e.audit(ctx, "execution_cancelled", audit.SeverityInfo, map[string]any{"execution_id": exec.ID})
				return exec, nil
			}
		}

		ready := e.readyTasks(exec, execPlan, order)
		if len(ready) == 0 {
			break // nothing ready and nothing in flight: either done or deadlocked
		}
		for _, taskID := range ready {
			exec.InFlightTasks[taskID] = true
			result := e.runTaskWithRetry(ctx, execPlan.Tasks[taskID])
			delete(exec.InFlightTasks, taskID)
			exec.Results[taskID] = result

			if result.Status == "completed" {
				exec.CompletedTasks[taskID] = true
			} else {
				exec.State = ExecFailed
				exec.EndedAt = planStartTime()
				e.audit(ctx, "execution_failed", audit.SeverityError, map[string]any{
					"execution_id": exec.ID, "task_id": taskID, "error": result.Error,
				})
				return exec, nil
			}
			e.checkpoint(exec)
		}
	}

	exec.State = ExecCompleted
	exec.EndedAt = planStartTime()
	e.audit(ctx, "execution_completed", audit.SeverityInfo, map[string]any{"execution_id": exec.ID})
	return exec, nil
}

func (e *Executor) remaining(exec *WorkflowExecution, order []string) bool {
	return len(exec.CompletedTasks) < len(order)
}

// readyTasks returns the ids (in deterministic order) of every
// not-yet-completed, not-in-flight task whose prerequisites are all
// completed.
func (e *Executor) readyTasks(exec *WorkflowExecution, execPlan *ExecutionPlan, order []string) []string {
	var ready []string
	for _, id := range order {
		if exec.CompletedTasks[id] || exec.InFlightTasks[id] {
			continue
		}
		blocked := false
		for _, dep := range execPlan.Tasks[id].Dependencies {
			if !exec.CompletedTasks[dep] {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, id)
		}
	}
	return ready
}

func taskOrder(tasks map[string]TaskDetail) []string {
	order := make([]string, 0, len(tasks))
	for id := range tasks {
		order = append(order, id)
	}
	sort.Strings(order)
	return order
}

// runTaskWithRetry dispatches task, retrying Transient failures per §7's
// backoff schedule up to MaxRetries.
func (e *Executor) runTaskWithRetry(ctx context.Context, task TaskDetail) TaskExecResult {
	maxRetries := e.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var last TaskExecResult
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := e.runTaskOnce(ctx, task)
		if err == nil {
			return result
		}
		last = result
		last.Error = err.Error()

		kind, _ := kernelerr.KindOf(err)
		if kind != kernelerr.KindTransient {
			last.Status = "failed"
			return last
		}
		if attempt == maxRetries {
			last.Status = "failed"
			return last
		}
		idx := attempt
		if idx >= len(RetryBackoff) {
			idx = len(RetryBackoff) - 1
		}
		select {
		case <-ctx.Done():
			last.Status = "cancelled"
			return last
		case <-time.After(RetryBackoff[idx]):
		}
	}
	last.Status = "failed"
	return last
}

// runTaskOnce finds or spawns an idle worker for task.Role and dispatches
// it, optionally routing a model call through C4 first.
func (e *Executor) runTaskOnce(ctx context.Context, task TaskDetail) (TaskExecResult, error) {
	processID, err := e.acquireWorker(ctx, task.Role)
	if err != nil {
		return TaskExecResult{TaskID: task.ID}, err
	}

	result := TaskExecResult{TaskID: task.ID, WorkerID: processID}
	start := planStartTime()

	if e.Router != nil {
		callResult, err := e.Router.Call(ctx, llm.Call{Role: task.Role, Prompt: task.Name}, task.ID)
		if err != nil {
			return result, err
		}
		result.Confidence = callResult.Quality.Overall
	}

	taskData, _ := json.Marshal(map[string]string{"name": task.Name})
	wpResult, err := e.Pool.Send(ctx, processID, workerpool.Task{TaskID: task.ID, TaskData: taskData})
	if err != nil {
		return result, err
	}
	result.ExecutionTime = planStartTime().Sub(start)
	if !wpResult.Success {
		result.Status = "failed"
		result.Error = wpResult.Error
		return result, kernelerr.New(kernelerr.KindTransient, "planner.Execute", wpResult.Error)
	}
	result.Output = wpResult.Result
	result.Status = "completed"
	return result, nil
}

// acquireWorker returns an idle worker's process id for role, scaling up
// (bounded by MaxConcurrentPerRole) if none is idle.
func (e *Executor) acquireWorker(ctx context.Context, role string) (string, error) {
	var roleCount int
	for _, wp := range e.Pool.StatusAll() {
		if wp.Role != role {
			continue
		}
		roleCount++
		if wp.Status == workerpool.StatusIdle {
			return wp.ProcessID, nil
		}
	}
	limit := e.MaxConcurrentPerRole
	if limit <= 0 {
		limit = 3
	}
	if roleCount >= limit {
		return "", kernelerr.ErrCapacityExceeded
	}
	instanceID := fmt.Sprintf("%s-%d", role, roleCount)
	wp, err := e.Pool.Spawn(ctx, role, instanceID, "", nil)
	if err != nil {
		return "", err
	}
	return wp.ProcessID, nil
}

// checkpoint records a resumable snapshot after a task completion, per
// spec.md §4.7.3.
func (e *Executor) checkpoint(exec *WorkflowExecution) {
	cp := Checkpoint{
		CompletedTasks: cloneBoolSet(exec.CompletedTasks),
		InFlightTasks:  cloneBoolSet(exec.InFlightTasks),
		RecordedAt:     planStartTime(),
	}
	exec.Checkpoints = append(exec.Checkpoints, cp)
}

func cloneBoolSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Cancel marks executionID for cancellation: in-flight tasks are allowed
// to finish, but no new tasks will be dispatched, per spec.md §4.7.3.
func (e *Executor) Cancel(executionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.executions[executionID]; !ok {
		return kernelerr.ErrPlanNotFound
	}
	e.cancelled[executionID] = true
	return nil
}

func (e *Executor) isCancelled(executionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled[executionID]
}

// Resume re-verifies prerequisites and re-queues the in-flight set from
// exec's most recent checkpoint, per spec.md §4.7.3, then continues
// driving it through the same run loop Execute uses.
func (e *Executor) Resume(ctx context.Context, exec *WorkflowExecution) (*WorkflowExecution, error) {
	if len(exec.Checkpoints) == 0 {
		return exec, nil
	}
	last := exec.Checkpoints[len(exec.Checkpoints)-1]
	exec.CompletedTasks = cloneBoolSet(last.CompletedTasks)
	for id := range last.InFlightTasks {
		delete(exec.CompletedTasks, id) // in-flight at checkpoint time is re-dispatched, not assumed done
	}
	exec.InFlightTasks = make(map[string]bool)

	e.mu.Lock()
	e.executions[exec.ID] = exec
	delete(e.cancelled, exec.ID)
	e.mu.Unlock()

	return e.runLoop(ctx, exec)
}
