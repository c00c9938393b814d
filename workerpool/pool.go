// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workerpool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/axonkernel/orchestrator/audit"
	"github.com/axonkernel/orchestrator/kernelerr"
	"github.com/axonkernel/orchestrator/shared/logger"
)

// Pool manages a fleet of subprocess workers across roles (component C5).
// registryMu is the pool-wide registry lock of spec.md §4.5: it guards
// spawning, termination and scaling, and readers may take a point-in-time
// snapshot without it. send() work is dispatched through sem, a bounded
// work executor sized to config.MaxConcurrent, independent of any single
// process's own lock.
type Pool struct {
	registryMu sync.RWMutex
	processes  map[string]*process
	seq        uint64

	launcher   Launcher
	config     Config
	stateStore StateStore
	auditSink  audit.Store
	log        *logger.Logger

	sem *semaphore.Weighted

	sweeperStop   chan struct{}
	sweeperDone   chan struct{}
	heartbeatStop chan struct{}
	heartbeatDone chan struct{}

	metrics *poolMetrics
}

func NewPool(launcher Launcher, config Config, stateStore StateStore, auditSink audit.Store, log *logger.Logger) *Pool {
	config = config.withDefaults()
	if stateStore == nil {
		stateStore = NewMemoryStateStore()
	}
	p := &Pool{
		processes:     make(map[string]*process),
		launcher:      launcher,
		config:        config,
		stateStore:    stateStore,
		auditSink:     auditSink,
		log:           log,
		sem:           semaphore.NewWeighted(int64(config.MaxConcurrent)),
		sweeperStop:   make(chan struct{}),
		sweeperDone:   make(chan struct{}),
		heartbeatStop: make(chan struct{}),
		heartbeatDone: make(chan struct{}),
		metrics:       newPoolMetrics(),
	}
	go p.sweepLoop()
	if config.Heartbeat.Enabled {
		go p.heartbeatLoop()
	} else {
		close(p.heartbeatDone)
	}
	return p
}

func (p *Pool) audit(ctx context.Context, action string, severity audit.Severity, meta map[string]any) {
	if p.auditSink == nil {
		return
	}
	_, _ = p.auditSink.Record(ctx, audit.Entry{
		Kind:     audit.KindAgentEvent,
		Severity: severity,
		Action:   action,
		Category: "workerpool",
		Payload:  audit.Payload{Metadata: meta},
	})
}

// Spawn forks a new worker subprocess for role, awaiting its ready
// handshake, and returns it in the idle state.
func (p *Pool) Spawn(ctx context.Context, role, instanceID, modelTier string, config json.RawMessage) (WorkerProcess, error) {
	p.registryMu.Lock()
	defer p.registryMu.Unlock()

	if len(p.processes) >= p.config.MaxConcurrent {
		return WorkerProcess{}, kernelerr.ErrCapacityExceeded
	}

	proc, err := launch(p.launcher, role, instanceID, modelTier, config, p.config.HandshakeTimeout)
	if err != nil {
		p.metrics.spawnsTotal.WithLabelValues("failure").Inc()
		p.audit(ctx, "spawn_failed", audit.SeverityError, map[string]any{"role": role, "instance_id": instanceID, "error": err.Error()})
		return WorkerProcess{}, err
	}

	p.seq++
	proc.id = fmt.Sprintf("%s-%s-%d", role, instanceID, p.seq)
	p.processes[proc.id] = proc

	p.metrics.spawnsTotal.WithLabelValues("success").Inc()
	p.metrics.activeWorkers.Set(float64(len(p.processes)))
	p.audit(ctx, "spawned", audit.SeverityInfo, map[string]any{"process_id": proc.id, "role": role, "pid": proc.pid})
	return proc.snapshot(), nil
}

// Send dispatches task to process_id, bounded by the pool's work
// executor and the per-task timeout.
func (p *Pool) Send(ctx context.Context, processID string, task Task) (TaskResult, error) {
	p.metrics.queueDepth.Inc()
	defer p.metrics.queueDepth.Dec()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return TaskResult{}, fmt.Errorf("workerpool: acquire executor slot: %w", err)
	}
	defer p.sem.Release(1)

	p.registryMu.RLock()
	proc, ok := p.processes[processID]
	p.registryMu.RUnlock()
	if !ok {
		p.metrics.tasksTotal.WithLabelValues("not_found").Inc()
		return TaskResult{}, kernelerr.ErrProcessNotFound
	}

	result, err := proc.runTask(task, p.config.TaskTimeout)
	if err != nil {
		p.metrics.tasksTotal.WithLabelValues("failure").Inc()
		p.audit(ctx, "task_failed", audit.SeverityWarning, map[string]any{"process_id": processID, "task_id": task.TaskID, "error": err.Error()})
		return TaskResult{}, err
	}
	p.metrics.tasksTotal.WithLabelValues("success").Inc()
	return result, nil
}

// Scale spawns or terminates workers of role to reach target. Scaling
// down terminates the oldest-idle workers first; in-flight workers are
// never pre-empted mid-task.
func (p *Pool) Scale(ctx context.Context, role string, target int, defaultInstancePrefix string, config json.RawMessage) error {
	current := p.roleProcesses(role)
	if len(current) < target {
		for i := len(current); i < target; i++ {
			instanceID := fmt.Sprintf("%s-%d", defaultInstancePrefix, i)
			if _, err := p.Spawn(ctx, role, instanceID, "", config); err != nil {
				return err
			}
		}
		return nil
	}

	if len(current) > target {
		sort.Slice(current, func(i, j int) bool {
			return current[i].spawnedAt.Before(current[j].spawnedAt)
		})
		toRemove := len(current) - target
		removed := 0
		for _, proc := range current {
			if removed >= toRemove {
				break
			}
			snap := proc.snapshot()
			if snap.Status == StatusBusy {
				continue // never pre-empt in-flight work
			}
			if err := p.Terminate(ctx, snap.ProcessID); err != nil {
				return err
			}
			removed++
		}
	}
	return nil
}

func (p *Pool) roleProcesses(role string) []*process {
	p.registryMu.RLock()
	defer p.registryMu.RUnlock()
	var out []*process
	for _, proc := range p.processes {
		if proc.role == role {
			out = append(out, proc)
		}
	}
	return out
}

// Terminate gracefully shuts down process_id: shutdown message, then
// SIGTERM, then SIGKILL, cleaning up all associated state. Idempotent.
func (p *Pool) Terminate(ctx context.Context, processID string) error {
	p.registryMu.Lock()
	proc, ok := p.processes[processID]
	if !ok {
		p.registryMu.Unlock()
		return nil // idempotent: already gone
	}
	delete(p.processes, processID)
	p.metrics.activeWorkers.Set(float64(len(p.processes)))
	p.registryMu.Unlock()

	_ = proc.sendShutdown()
	if proc.waitExit(GracefulShutdownWait) {
		p.audit(ctx, "terminated", audit.SeverityInfo, map[string]any{"process_id": processID, "method": "graceful"})
		_ = p.stateStore.Delete(ctx, processID)
		return nil
	}

	_ = proc.signal(syscall.SIGTERM)
	if proc.waitExit(SIGTERMWait) {
		p.audit(ctx, "terminated", audit.SeverityWarning, map[string]any{"process_id": processID, "method": "sigterm"})
		_ = p.stateStore.Delete(ctx, processID)
		return nil
	}

	_ = proc.kill()
	proc.waitExit(5 * time.Second)
	p.audit(ctx, "terminated", audit.SeverityWarning, map[string]any{"process_id": processID, "method": "sigkill"})
	_ = p.stateStore.Delete(ctx, processID)
	return nil
}

// Status returns a snapshot of one process.
func (p *Pool) Status(processID string) (WorkerProcess, error) {
	p.registryMu.RLock()
	proc, ok := p.processes[processID]
	p.registryMu.RUnlock()
	if !ok {
		return WorkerProcess{}, kernelerr.ErrProcessNotFound
	}
	return proc.snapshot(), nil
}

// StatusAll returns a snapshot of every tracked process.
func (p *Pool) StatusAll() []WorkerProcess {
	p.registryMu.RLock()
	defer p.registryMu.RUnlock()
	out := make([]WorkerProcess, 0, len(p.processes))
	for _, proc := range p.processes {
		out = append(out, proc.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProcessID < out[j].ProcessID })
	return out
}

// SaveState persists process_id's current snapshot to the state store.
func (p *Pool) SaveState(ctx context.Context, processID string) error {
	p.registryMu.RLock()
	proc, ok := p.processes[processID]
	p.registryMu.RUnlock()
	if !ok {
		return kernelerr.ErrProcessNotFound
	}
	snap := proc.snapshot()
	snap.SavedAt = time.Now()
	return p.stateStore.Save(ctx, snap)
}

// LoadState returns the persisted snapshot for process_id, if any.
func (p *Pool) LoadState(ctx context.Context, processID string) (WorkerProcess, bool, error) {
	return p.stateStore.Load(ctx, processID)
}

// RecoverAll attempts to respawn every persisted process record. Recovery
// is best-effort: a failed recovery is reported in failed but does not
// abort the rest of the pool.
func (p *Pool) RecoverAll(ctx context.Context) (recovered []string, failed map[string]error) {
	failed = make(map[string]error)
	records, err := p.stateStore.ListAll(ctx)
	if err != nil {
		failed["*"] = err
		return nil, failed
	}
	for _, rec := range records {
		if _, err := p.Spawn(ctx, rec.Role, rec.InstanceID, rec.ModelTier, rec.Config); err != nil {
			failed[rec.ProcessID] = err
			p.audit(ctx, "recover_failed", audit.SeverityWarning, map[string]any{"process_id": rec.ProcessID, "error": err.Error()})
			continue
		}
		recovered = append(recovered, rec.ProcessID)
	}
	return recovered, failed
}

// CleanupTerminated reaps subprocesses that have exited on their own
// since the last scan. Called by the background sweeper every
// config.SweepInterval, and may also be invoked directly.
func (p *Pool) CleanupTerminated(ctx context.Context) (int, error) {
	p.registryMu.Lock()
	defer p.registryMu.Unlock()

	reaped := 0
	for id, proc := range p.processes {
		if proc.exited() {
			delete(p.processes, id)
			_ = p.stateStore.Delete(ctx, id)
			p.audit(ctx, "reaped", audit.SeverityInfo, map[string]any{"process_id": id})
			reaped++
			continue
		}
		snap := proc.snapshot()
		if snap.Status == StatusUnresponsive {
			delete(p.processes, id)
			_ = proc.kill()
			_ = p.stateStore.Delete(ctx, id)
			p.audit(ctx, "reaped_unresponsive", audit.SeverityWarning, map[string]any{"process_id": id})
			reaped++
		}
	}
	p.metrics.activeWorkers.Set(float64(len(p.processes)))
	return reaped, nil
}

func (p *Pool) sweepLoop() {
	defer close(p.sweeperDone)
	ticker := time.NewTicker(p.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.sweeperStop:
			return
		case <-ticker.C:
			_, _ = p.CleanupTerminated(context.Background())
		}
	}
}

func (p *Pool) heartbeatLoop() {
	defer close(p.heartbeatDone)
	interval := p.config.Heartbeat.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.heartbeatStop:
			return
		case <-ticker.C:
			p.registryMu.RLock()
			procs := make([]*process, 0, len(p.processes))
			for _, proc := range p.processes {
				procs = append(procs, proc)
			}
			p.registryMu.RUnlock()

			for _, proc := range procs {
				if proc.heartbeat(interval, p.config.Heartbeat.MaxMissed) {
					p.audit(context.Background(), "unresponsive", audit.SeverityWarning, map[string]any{"process_id": proc.id})
				}
			}
		}
	}
}

// Shutdown saves state for every active process, terminates each, and
// joins the background sweeper and heartbeat goroutines.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.registryMu.RLock()
	ids := make([]string, 0, len(p.processes))
	for id := range p.processes {
		ids = append(ids, id)
	}
	p.registryMu.RUnlock()

	for _, id := range ids {
		_ = p.SaveState(ctx, id)
	}
	for _, id := range ids {
		_ = p.Terminate(ctx, id)
	}

	close(p.sweeperStop)
	<-p.sweeperDone
	if p.config.Heartbeat.Enabled {
		close(p.heartbeatStop)
		<-p.heartbeatDone
	}
	return nil
}
