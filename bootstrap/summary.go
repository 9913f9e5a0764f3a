package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/service-template/component"
)

// Summary collects and prints what the service brought up at startup.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	out             io.Writer
}

// NewSummary creates a new bootstrap summary writing to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName: serviceName,
		version:     version,
		out:         os.Stdout,
	}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// DisplaySummary prints infrastructure, routes and live health collected
// from the registry.
func (s *Summary) DisplaySummary(ctx context.Context, registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "🚀 %s v%s started in %.2fs\n\n",
		s.serviceName, s.version, s.startupDuration.Seconds())

	if registry == nil {
		fmt.Fprintf(w, "   └── No components registered\n\n")
		return
	}

	components := registry.All()
	if len(components) == 0 {
		fmt.Fprintf(w, "   └── No components registered\n\n")
		return
	}

	fmt.Fprintf(w, "📊 Infrastructure\n")
	var routes []component.Route
	for i, c := range components {
		desc := component.Description{Name: c.Name()}
		if d, ok := c.(component.Describable); ok {
			desc = d.Describe()
			if desc.Name == "" {
				desc.Name = c.Name()
			}
		}
		details := desc.Details
		if desc.Port > 0 {
			details = fmt.Sprintf("%s (:%d)", details, desc.Port)
		}
		line := desc.Name
		if desc.Type != "" {
			line = fmt.Sprintf("%s [%s]", line, desc.Type)
		}
		if details != "" {
			line = fmt.Sprintf("%s: %s", line, details)
		}
		fmt.Fprintf(w, "   %s %s\n", treePrefix(i, len(components)), line)

		if rp, ok := c.(component.RouteProvider); ok {
			routes = append(routes, rp.Routes()...)
		}
	}

	if len(routes) > 0 {
		fmt.Fprintf(w, "\n🌐 Routes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-7s %s → %s\n", treePrefix(i, len(routes)), r.Method, r.Path, r.Handler)
		}
	}

	results := registry.HealthAll(ctx)
	healthy := 0
	fmt.Fprintf(w, "\n🏥 Health Check\n")
	for i, h := range results {
		msg := ""
		if h.Message != "" {
			msg = " (" + h.Message + ")"
		}
		fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(results)),
			healthStatusIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
		if h.Healthy() {
			healthy++
		}
	}
	fmt.Fprintf(w, "\n")

	if healthy == len(results) {
		fmt.Fprintf(w, "✅ All components healthy (%d/%d)\n\n", healthy, len(results))
	} else {
		fmt.Fprintf(w, "⚠️  Some components have issues (%d/%d healthy)\n\n", healthy, len(results))
	}
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
