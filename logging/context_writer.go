package logging

import (
	"context"
	"io"
)

type writerKey struct{}

// WithWriter attaches an output writer to ctx. Command handlers use this to
// aim pretty log lines at their own stdout or a capture buffer.
func WithWriter(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, writerKey{}, w)
}

// GetWriter returns the writer attached by WithWriter, or the process-wide
// output when ctx carries none.
func GetWriter(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(writerKey{}).(io.Writer); ok && w != nil {
		return w
	}
	return GetGlobalOutput()
}
