// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import "testing"

func TestRegistryAddGetRemove(t *testing.T) {
	reg := NewRegistry()
	reg.AddTemplate(&WorkflowTemplate{ID: "a"})
	reg.AddTemplate(&WorkflowTemplate{ID: "b"})

	if _, ok := reg.Get("a"); !ok {
		t.Fatal("expected template a to be registered")
	}
	if !reg.RemoveTemplate("a") {
		t.Fatal("expected RemoveTemplate(a) to report removal")
	}
	if reg.RemoveTemplate("a") {
		t.Fatal("expected second RemoveTemplate(a) to report no-op")
	}
	if _, ok := reg.Get("a"); ok {
		t.Error("template a should no longer be registered")
	}
}

func TestRegistryListTemplatesPreservesInsertionOrder(t *testing.T) {
	reg := NewRegistry()
	reg.AddTemplate(&WorkflowTemplate{ID: "first"})
	reg.AddTemplate(&WorkflowTemplate{ID: "second"})
	reg.AddTemplate(&WorkflowTemplate{ID: "third"})

	list := reg.ListTemplates()
	got := []string{list[0].ID, list[1].ID, list[2].ID}
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListTemplates()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryReplaceKeepsOriginalPosition(t *testing.T) {
	reg := NewRegistry()
	reg.AddTemplate(&WorkflowTemplate{ID: "first", Name: "v1"})
	reg.AddTemplate(&WorkflowTemplate{ID: "second"})
	reg.AddTemplate(&WorkflowTemplate{ID: "first", Name: "v2"})

	list := reg.ListTemplates()
	if len(list) != 2 {
		t.Fatalf("len(ListTemplates()) = %d, want 2", len(list))
	}
	if list[0].ID != "first" || list[0].Name != "v2" {
		t.Errorf("list[0] = %+v, want first/v2 at original position", list[0])
	}
}

func TestRegistryVersionBumpsOnMutation(t *testing.T) {
	reg := NewRegistry()
	v0 := reg.snapshotVersion()

	reg.AddTemplate(&WorkflowTemplate{ID: "a"})
	v1 := reg.snapshotVersion()
	if v1 == v0 {
		t.Error("version should bump after AddTemplate")
	}

	reg.RemoveTemplate("a")
	v2 := reg.snapshotVersion()
	if v2 == v1 {
		t.Error("version should bump after RemoveTemplate")
	}
}
