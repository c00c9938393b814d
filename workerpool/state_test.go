// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workerpool

import (
	"context"
	"testing"
)

func TestMemoryStateStoreSaveLoadDelete(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	if _, ok, err := store.Load(ctx, "p1"); err != nil || ok {
		t.Fatalf("expected miss before save, got ok=%v err=%v", ok, err)
	}

	wp := WorkerProcess{ProcessID: "p1", Role: "pm", Status: StatusIdle}
	if err := store.Save(ctx, wp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := store.Load(ctx, "p1")
	if err != nil || !ok {
		t.Fatalf("expected hit after save, got ok=%v err=%v", ok, err)
	}
	if got.Role != "pm" {
		t.Errorf("Role = %q, want pm", got.Role)
	}

	if err := store.Delete(ctx, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "p1"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryStateStoreListAll(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()
	_ = store.Save(ctx, WorkerProcess{ProcessID: "a"})
	_ = store.Save(ctx, WorkerProcess{ProcessID: "b"})

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}
}
