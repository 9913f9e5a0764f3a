// Package observability provides OpenTelemetry tracing and metrics setup
// and the Scope helper used to trace individual operations.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("my-service"))
//	defer tp.Shutdown(ctx)
//
//	ctx, scope := observability.Start(ctx, observability.Trace{Tracer: "db", Span: "query"}, observability.Here())
//	defer scope.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, &cfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("my-service"))
//	metrics.RecordProbe(ctx, "postgres", up, duration)
package observability
