// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"testing"
)

func TestRouterMetricsCountSuccessfulCalls(t *testing.T) {
	router, _ := newTestRouter(t, ProviderFunc(func(ctx context.Context, modelID string, req Request) (Response, error) {
		return Response{Content: "a complete and useful response to the prompt given here", InTokens: 10, OutTokens: 10}, nil
	}))

	if _, err := router.Call(context.Background(), Call{Role: "pm", Prompt: "hi"}, "task-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mfs, err := router.Registry().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "llm_router_calls_total" {
			found = true
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			if total != 1 {
				t.Errorf("llm_router_calls_total = %v, want 1", total)
			}
		}
	}
	if !found {
		t.Fatal("expected llm_router_calls_total to be registered")
	}
}
