package telemetry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ryandielhenn/zephyrfd/pkg/detector"
)

func TestInstrumentDetectorCounts(t *testing.T) {
	const algo = "test-counts"
	d := InstrumentDetector(algo, detector.NewFixed())

	if err := d.RegisterMonitored("a", 0, 100); err != nil {
		t.Fatal(err)
	}
	if err := d.RegisterMonitored("b", 0, 100); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(MonitoredEntities.WithLabelValues(algo)); got != 2 {
		t.Fatalf("monitored_entities = %v, want 2", got)
	}

	_ = d.MessageReceived("a", 10, detector.Ping)
	_ = d.MessageReceived("a", 20, detector.Application)
	_ = d.MessageSent("a", 30, detector.Ping)

	if got := testutil.ToFloat64(MessagesTotal.WithLabelValues(algo, "received", "ping")); got != 1 {
		t.Fatalf("received ping = %v, want 1", got)
	}
	if got := testutil.ToFloat64(MessagesTotal.WithLabelValues(algo, "received", "application")); got != 1 {
		t.Fatalf("received application = %v, want 1", got)
	}
	if got := testutil.ToFloat64(MessagesTotal.WithLabelValues(algo, "sent", "ping")); got != 1 {
		t.Fatalf("sent ping = %v, want 1", got)
	}

	if failed, _ := d.IsFailed("a", 500); !failed {
		t.Fatal("IsFailed(500) = false, want true")
	}
	if got := testutil.ToFloat64(FailureChecks.WithLabelValues(algo, "true")); got != 1 {
		t.Fatalf("failure_checks{failed=true} = %v, want 1", got)
	}

	if err := d.ReleaseMonitored("b"); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(MonitoredEntities.WithLabelValues(algo)); got != 1 {
		t.Fatalf("monitored_entities = %v, want 1", got)
	}
}

func TestInstrumentDetectorSkipsErrors(t *testing.T) {
	const algo = "test-errors"
	d := InstrumentDetector(algo, detector.NewFixed())

	if err := d.MessageReceived("ghost", 1, detector.Ping); !errors.Is(err, detector.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := d.ReleaseMonitored("ghost"); !errors.Is(err, detector.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := testutil.ToFloat64(MessagesTotal.WithLabelValues(algo, "received", "ping")); got != 0 {
		t.Fatalf("received ping = %v, want 0", got)
	}
	if got := testutil.ToFloat64(MonitoredEntities.WithLabelValues(algo)); got != 0 {
		t.Fatalf("monitored_entities = %v, want 0", got)
	}
}

func TestInstrumentHTTP(t *testing.T) {
	h := Instrument("teapot", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if got := testutil.ToFloat64(RequestsTotal.WithLabelValues("teapot", "4xx")); got != 1 {
		t.Fatalf("requests_total{op=teapot,status=4xx} = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesNamespace(t *testing.T) {
	SetBuildInfo("v0.0.0-test", "deadbeef")
	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `zephyrfd_build_info{git_sha="deadbeef",version="v0.0.0-test"} 1`) {
		t.Fatalf("build_info missing from /metrics output:\n%s", body)
	}
}
