package logging

import (
	"context"
	"maps"
)

type ctxFieldsKey struct{}

// ContextWithFields layers fields over the ones already carried by ctx.
// Command handlers use it so entries emitted for a job or a sync share the
// same identifiers.
func ContextWithFields(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil || len(fields) == 0 {
		return ctx
	}
	merged := ContextFields(ctx)
	if merged == nil {
		merged = make(map[string]any, len(fields))
	}
	maps.Copy(merged, fields)
	return context.WithValue(ctx, ctxFieldsKey{}, merged)
}

// ContextFields returns a copy of the fields carried by ctx, or nil.
func ContextFields(ctx context.Context) map[string]any {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(ctxFieldsKey{}).(map[string]any)
	if len(fields) == 0 {
		return nil
	}
	return maps.Clone(fields)
}

// ContextWithJob tags ctx with the scheduler job being processed.
func ContextWithJob(ctx context.Context, jobID, jobType string, attempt int) context.Context {
	return ContextWithFields(ctx, map[string]any{
		"job_id":   jobID,
		"job_type": jobType,
		"attempt":  attempt,
	})
}
