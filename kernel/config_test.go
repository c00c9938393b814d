// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package kernel

import (
	"context"
	"testing"
)

func TestOpenAuditStoreIsNoopWithoutDSN(t *testing.T) {
	store, err := OpenAuditStore(context.Background(), AuditConfig{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store != nil {
		t.Error("expected a nil store when no DSN is configured")
	}
}

func TestDefaultConfigMatchesStatedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxConcurrentProcesses != 50 {
		t.Errorf("MaxConcurrentProcesses = %d, want 50", cfg.MaxConcurrentProcesses)
	}
	if cfg.QualityThreshold != 0.7 {
		t.Errorf("QualityThreshold = %v, want 0.7", cfg.QualityThreshold)
	}
	if cfg.Audit.RepositoryKind != "" {
		t.Errorf("RepositoryKind = %q, want empty (defaults to postgres)", cfg.Audit.RepositoryKind)
	}
}
