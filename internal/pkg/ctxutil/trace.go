package ctxutil

import "context"

// TraceData correlates the log lines and response headers of one request.
type TraceData struct {
	TraceID   string
	RequestID string
}

type traceKey struct{}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(Default(ctx), traceKey{}, td)
}

// GetTraceData returns nil for a nil ctx or one without trace data.
func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceKey{}).(*TraceData)
	return td
}
