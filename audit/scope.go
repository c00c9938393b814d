// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package audit

import (
	"context"
	"runtime/debug"
	"time"
)

// ScopedOperation begins and ends an operation against a Store, logging a
// start event, an end event carrying its duration, and — on failure — an
// error event with the stack trace. It guarantees exactly one terminal
// event (end or error) on every exit path, including panics: a recovered
// panic is re-raised after the error event is recorded.
//
// Usage mirrors the teacher's pattern of wrapping a unit of work with
// before/after audit calls (orchestrator/audit_logger.go's
// LogSuccessfulRequest/LogFailedRequest pair), generalized into a single
// reusable helper instead of one bespoke pair per call site.
func ScopedOperation(ctx context.Context, store Store, category string, actors Actors, fn func(ctx context.Context) error) (err error) {
	start := time.Now()
	_, _ = store.Record(ctx, Entry{
		Kind:     KindProcessing,
		Severity: SeverityInfo,
		Actors:   actors,
		Action:   "start",
		Category: category,
	})

	defer func() {
		if r := recover(); r != nil {
			_, _ = store.Record(ctx, Entry{
				Kind:     KindError,
				Severity: SeverityFatal,
				Actors:   actors,
				Action:   "panic",
				Category: category,
				Payload: Payload{
					DurationMs:   time.Since(start).Milliseconds(),
					ErrorType:    "panic",
					ErrorMessage: toString(r),
					Stack:        string(debug.Stack()),
				},
			})
			panic(r)
		}
	}()

	err = fn(ctx)

	if err != nil {
		_, _ = store.Record(ctx, Entry{
			Kind:     KindError,
			Severity: SeverityError,
			Actors:   actors,
			Action:   "end",
			Category: category,
			Payload: Payload{
				DurationMs:   time.Since(start).Milliseconds(),
				ErrorType:    "error",
				ErrorMessage: err.Error(),
				Stack:        string(debug.Stack()),
			},
		})
		return err
	}

	_, _ = store.Record(ctx, Entry{
		Kind:     KindProcessing,
		Severity: SeverityInfo,
		Actors:   actors,
		Action:   "end",
		Category: category,
		Payload: Payload{
			DurationMs: time.Since(start).Milliseconds(),
		},
	})
	return nil
}

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "panic"
}
