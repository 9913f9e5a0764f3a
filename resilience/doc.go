// Package resilience retries transient failures with exponential backoff.
//
// AppErrors carry their own retryable flag, which DefaultRetryIf honours:
//
//	err := resilience.RetryFunc(ctx, resilience.RetryConfig{
//	    Name:        "broker-connect",
//	    MaxAttempts: cfg.ConnectAttempts,
//	}, manager.SetUp)
package resilience
