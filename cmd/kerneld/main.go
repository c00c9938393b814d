// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package main is a peripheral demonstration binary for the orchestration
// kernel: it wires a Kernel with stub worker/model collaborators,
// registers one workflow template, and walks a single request through
// plan generation, validation, and approval. It is not part of the
// kernel's own surface — real deployments supply their own Launcher and
// Provider and drive the Kernel from whatever ingress (HTTP, CLI, queue
// consumer) they choose, per spec.md §1's exclusion of that surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"time"

	"github.com/axonkernel/orchestrator/kernel"
	"github.com/axonkernel/orchestrator/llm"
	"github.com/axonkernel/orchestrator/workflow"
)

// echoProvider stands in for a real model backend: it always succeeds
// with a canned response, so the demo can exercise C4's routing and
// quality-evaluation path without calling out to a network.
type echoProvider struct{}

func (echoProvider) Complete(_ context.Context, modelID string, req llm.Request) (llm.Response, error) {
	return llm.Response{
		Content:   fmt.Sprintf("[%s] acknowledged: %s", modelID, req.Prompt),
		InTokens:  len(req.Prompt) / 4,
		OutTokens: 32,
		LatencyMs: 50,
	}, nil
}

// noopLauncher never actually spawns a worker subprocess; the demo stops
// at planning and approval, which is enough to exercise C1-C4 and C6-C7
// without requiring a real agent runtime (out of this kernel's scope per
// spec.md §1).
func noopLauncher(role, instanceID string, config json.RawMessage) (*exec.Cmd, error) {
	return nil, fmt.Errorf("kerneld: no worker runtime configured for role %q (demo stops before execute)", role)
}

func demoTemplate() *workflow.WorkflowTemplate {
	return &workflow.WorkflowTemplate{
		ID:                 "demo-project-kickoff",
		Name:               "Demo Project Kickoff",
		Category:           "generic",
		Pattern:            workflow.PatternSequential,
		RequiredRoles:      []string{"pm", "ba", "sa"},
		DurationMinutes:    180,
		SupportedComplexities: []workflow.Complexity{workflow.ComplexityLow, workflow.ComplexityMedium},
		IntentKeywords:     []string{"kickoff", "project"},
		SuccessCriteria:    []string{"requirements captured", "architecture sketched"},
	}
}

func main() {
	cfg := kernel.LoadConfigFromEnv()

	k, err := kernel.New(cfg, noopLauncher, echoProvider{}, kernel.WithTemplates(demoTemplate()))
	if err != nil {
		log.Fatalf("kerneld: failed to construct kernel: %v", err)
	}

	req := workflow.Request{
		ID:         "demo-request-1",
		UserID:     "demo-user",
		RawText:    "kick off a new project for the billing service",
		Timestamp:  time.Now(),
		Intent:     "kickoff",
		Confidence: 0.85,
		Complexity: workflow.ComplexityLow,
		Context:    k.Conversations.GetOrCreate("demo-conversation", "demo-user"),
	}

	execPlan, warnings, err := k.PlanRequest(req)
	if err != nil {
		log.Fatalf("kerneld: plan request: %v", err)
	}
	fmt.Printf("generated execution plan %s (%s complexity, %d tasks)\n",
		execPlan.ID, execPlan.Complexity, len(execPlan.Tasks))
	for _, w := range warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	plan, err := k.Workflow.Plan(req)
	if err != nil {
		log.Fatalf("kerneld: re-derive plan for approval: %v", err)
	}
	approval, err := k.Planner.CreateApprovalWorkflow(execPlan.ID, plan, "standard")
	if err != nil {
		log.Fatalf("kerneld: create approval workflow: %v", err)
	}

	for _, gate := range approval.Gates {
		err := k.Planner.Decide(approval.ID, "approve", "kerneld-demo", "auto-approved by demo")
		if err != nil {
			fmt.Printf("gate %q requires manual review: %v\n", gate.Name, err)
			break
		}
		fmt.Printf("gate %q approved\n", gate.Name)
	}
	fmt.Printf("approval workflow status: %s\n", approval.Status)

	if err := k.Shutdown(context.Background()); err != nil {
		log.Fatalf("kerneld: shutdown: %v", err)
	}
}
