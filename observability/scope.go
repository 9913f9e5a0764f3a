package observability

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Trace names the tracer and the span a Scope opens.
type Trace struct {
	Tracer string
	Span   string
}

// Caller identifies the code that opened a span. It is attached to the span
// as code.* attributes.
type Caller struct {
	Function  string
	Namespace string
	File      string
	Line      int
}

// Here returns the Caller of the function that calls Here.
func Here() Caller {
	pc, file, line, ok := runtime.Caller(1)
	if !ok {
		return Caller{}
	}
	c := Caller{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		c.Namespace, c.Function = splitFuncName(fn.Name())
	}
	return c
}

// splitFuncName splits "pkg/path.(*Type).Method" into
// ("pkg/path.(*Type)", "Method") and "pkg/path.Func" into ("pkg/path", "Func").
func splitFuncName(name string) (namespace, function string) {
	slash := strings.LastIndex(name, "/")
	dot := strings.LastIndex(name[slash+1:], ".")
	if dot < 0 {
		return "", name
	}
	dot += slash + 1
	return name[:dot], name[dot+1:]
}

func (c Caller) attributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if c.Function != "" {
		attrs = append(attrs, semconv.CodeFunction(c.Function))
	}
	if c.Namespace != "" {
		attrs = append(attrs, semconv.CodeNamespace(c.Namespace))
	}
	if c.File != "" {
		attrs = append(attrs, semconv.CodeFilepath(c.File))
	}
	if c.Line > 0 {
		attrs = append(attrs, semconv.CodeLineNumber(c.Line))
	}
	return attrs
}

// Scope owns one span from Start until End.
//
//	ctx, scope := observability.Start(ctx, observability.Trace{Tracer: "db", Span: "query"}, observability.Here())
//	defer scope.End()
type Scope struct {
	span trace.Span
	once sync.Once
}

// Start opens a span on the named tracer as a child of any span in ctx and
// returns the derived context together with its Scope.
func Start(ctx context.Context, t Trace, caller Caller) (context.Context, *Scope) {
	ctx, span := otel.Tracer(t.Tracer).Start(ctx, t.Span,
		trace.WithAttributes(caller.attributes()...),
	)
	return ctx, &Scope{span: span}
}

// Span returns the underlying span.
func (s *Scope) Span() trace.Span { return s.span }

// SetAttributes adds attributes to the span.
func (s *Scope) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordError records err as an exception event and marks the span failed
// with msg as its status description.
func (s *Scope) RecordError(err error, msg string) {
	if err != nil {
		s.span.RecordError(err, trace.WithStackTrace(true))
	}
	s.span.SetStatus(codes.Error, msg)
}

// OK marks the span successful.
func (s *Scope) OK() {
	s.span.SetStatus(codes.Ok, "")
}

// End ends the span. Calls after the first are no-ops.
func (s *Scope) End() {
	s.once.Do(func() { s.span.End() })
}
