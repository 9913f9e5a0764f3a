package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/service-template/health"
	"github.com/kbukum/service-template/logger"
	"github.com/kbukum/service-template/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type checkerFunc func(ctx context.Context) health.Report

func (f checkerFunc) CheckHealth(ctx context.Context) health.Report { return f(ctx) }

func serve(h gin.HandlerFunc) *httptest.ResponseRecorder {
	engine := gin.New()
	engine.GET("/", h)
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))
	return rr
}

func TestHealthSpan(t *testing.T) {
	rec := testutil.SpanRecorder(t)

	var probeParent trace.SpanContext
	checker := checkerFunc(func(ctx context.Context) health.Report {
		probeParent = trace.SpanContextFromContext(ctx)
		return health.NewReport(health.Entry{Name: "postgres", Up: false})
	})

	rr := serve(Health(checker, logger.Nop()))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "router" {
		t.Errorf("expected span 'router', got %q", s.Name())
	}
	if s.InstrumentationScope().Name != health.TracerName {
		t.Errorf("expected tracer %q, got %q", health.TracerName, s.InstrumentationScope().Name)
	}
	if probeParent.SpanID() != s.SpanContext().SpanID() {
		t.Error("expected the checker to run inside the router span")
	}
}

func TestHealthEmptyReport(t *testing.T) {
	rr := serve(Health(checkerFunc(func(context.Context) health.Report {
		return health.NewReport()
	}), logger.Nop()))

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "{}" {
		t.Errorf("expected empty object, got %s", rr.Body.String())
	}
}

func TestInfo(t *testing.T) {
	rr := serve(Info("svc"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["service"] != "svc" || body["version"] == "" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestLiveness(t *testing.T) {
	rr := serve(Liveness("svc"))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}
