package testutil

import (
	"context"
	"testing"

	"github.com/kbukum/service-template/component"
)

// Setup starts c and stops it when the test ends. A start failure fails the
// test immediately.
func Setup(t testing.TB, c component.Component) {
	t.Helper()
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start %s: %v", c.Name(), err)
	}
	t.Cleanup(func() {
		if err := c.Stop(ctx); err != nil {
			t.Errorf("stop %s: %v", c.Name(), err)
		}
	})
}
