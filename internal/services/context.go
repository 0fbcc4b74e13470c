package services

import "context"

type contextKey string

const (
	runIDKey contextKey = "run_id"
	probeKey contextKey = "probe"
)

// WithRunID annotates context with the flash run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the flash run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithProbe annotates context with the selected probe (VID:PID[:serial]).
func WithProbe(ctx context.Context, selector string) context.Context {
	if selector == "" {
		return ctx
	}
	return context.WithValue(ctx, probeKey, selector)
}

// ProbeFromContext returns the probe selector if present.
func ProbeFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(probeKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
