// Package health aggregates dependency liveness probes into a Report.
//
// Each probe runs in its own span on the "health-router" tracer and is
// isolated from the others: an error, panic or timeout marks only that
// dependency as down.
//
//	agg := health.NewAggregator(log)
//	_ = agg.Register("postgres", store.IsUp)
//	_ = agg.Register("rabbit-mq", health.BoolProbe(manager.IsUp))
//	report := agg.CheckHealth(ctx) // {"isPostgresUp":true,"isRabbitMqUp":true}
package health
