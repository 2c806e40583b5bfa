// Package observe wires structured logging and tracing.
package observe

import (
	"context"
	"io"
	"strconv"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("mnemo")

// Observer carries the logger and tracer shared by a process.
type Observer struct {
	log *bolt.Logger
}

// New creates a new Observer with console output.
// If verbose is false, only warnings and errors are shown.
func New(out io.Writer, verbose bool) *Observer {
	return configure(bolt.New(bolt.NewConsoleHandler(out)), verbose)
}

// NewJSON creates a new Observer with JSON output.
// If verbose is false, only warnings and errors are shown.
func NewJSON(out io.Writer, verbose bool) *Observer {
	return configure(bolt.New(bolt.NewJSONHandler(out)), verbose)
}

// Discard returns an Observer that drops all logs.
func Discard() *Observer {
	return New(io.Discard, false)
}

func configure(l *bolt.Logger, verbose bool) *Observer {
	if !verbose {
		l.SetLevel(bolt.WARN)
	}
	return &Observer{log: l}
}

// Log returns the underlying logger.
func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// StartSpan opens a span under ctx; callers end it.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Score formats a float for log fields.
func Score(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

// Close flushes pending output. Both handlers write through, so there is
// nothing to flush yet.
func (o *Observer) Close() error {
	return nil
}
