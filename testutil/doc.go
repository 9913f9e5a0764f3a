// Package testutil holds test helpers shared across packages: an in-memory
// span recorder installed as the global tracer provider, a manual metric
// reader, and component setup with automatic cleanup.
//
//	func TestSetUp(t *testing.T) {
//	    rec := testutil.SpanRecorder(t)
//	    testutil.Setup(t, manager)
//	    span := testutil.FindSpan(rec, "connection-setup")
//	}
package testutil
