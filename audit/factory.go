// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package audit

import (
	"context"
	"fmt"

	"github.com/axonkernel/orchestrator/shared/logger"
)

// RepositoryKind selects the SQL driver backing a durable Store. Both kinds
// implement the same Store contract against the same audit_entries shape;
// postgres is the default deployment target, mysql the alternate.
type RepositoryKind string

const (
	RepositoryKindPostgres RepositoryKind = "postgres"
	RepositoryKindMySQL    RepositoryKind = "mysql"
)

// Open connects a durable Store of the given kind. An empty kind defaults
// to postgres.
func Open(ctx context.Context, kind RepositoryKind, dsn string, log *logger.Logger) (Store, error) {
	switch kind {
	case "", RepositoryKindPostgres:
		return NewPostgresStore(ctx, dsn, log)
	case RepositoryKindMySQL:
		return NewMySQLStore(ctx, dsn, log)
	default:
		return nil, fmt.Errorf("audit: unknown repository kind %q", kind)
	}
}
