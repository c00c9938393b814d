// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import (
	"testing"
	"time"
)

func TestRankOrdersByCompoundScoreDescending(t *testing.T) {
	low := Match{Template: &WorkflowTemplate{ID: "low"}, Relevance: 0.3, Confidence: 0.3, RequiredRoles: []string{"pm"}}
	high := Match{Template: &WorkflowTemplate{ID: "high"}, Relevance: 0.9, Confidence: 0.9, RequiredRoles: []string{"pm"}}

	ranked := Rank([]Match{low, high})
	if ranked[0].Template.ID != "high" {
		t.Errorf("ranked[0].Template.ID = %q, want high", ranked[0].Template.ID)
	}
	if ranked[0].Score() <= ranked[1].Score() {
		t.Errorf("Score() not descending: %v then %v", ranked[0].Score(), ranked[1].Score())
	}
}

func TestRankTiesRetainInsertionOrder(t *testing.T) {
	a := Match{Template: &WorkflowTemplate{ID: "a"}, Relevance: 0.5, Confidence: 0.5}
	b := Match{Template: &WorkflowTemplate{ID: "b"}, Relevance: 0.5, Confidence: 0.5}

	ranked := Rank([]Match{a, b})
	if ranked[0].Template.ID != "a" || ranked[1].Template.ID != "b" {
		t.Errorf("tie order = [%s %s], want [a b]", ranked[0].Template.ID, ranked[1].Template.ID)
	}
}

func TestRankPenalizesLongerDurationMoreAgentsAndPrereqs(t *testing.T) {
	lean := Match{Template: &WorkflowTemplate{ID: "lean"}, Relevance: 0.8, Confidence: 0.8, RequiredRoles: []string{"pm"}}
	heavy := Match{
		Template:      &WorkflowTemplate{ID: "heavy"},
		Relevance:     0.8,
		Confidence:    0.8,
		Duration:      2000 * time.Minute,
		RequiredRoles: []string{"pm", "ba", "sa", "qa"},
		Prerequisites: []string{"docker", "k8s"},
	}

	ranked := Rank([]Match{heavy, lean})
	if ranked[0].Template.ID != "lean" {
		t.Errorf("ranked[0].Template.ID = %q, want lean (fewer penalties)", ranked[0].Template.ID)
	}
}
