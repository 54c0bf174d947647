package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/trendloom/harvester/internal/adapter/observability"
)

func TestHTTPMetricsMiddleware_RecordsRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(observability.HTTPMetricsMiddleware)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRecordHelpers_DoNotPanic(t *testing.T) {
	observability.RecordRunStart("tiktok")
	observability.RecordRunOutcome("tiktok", "completed")
	observability.RecordScrapeError("tiktok", "NETWORK")
	observability.RecordProxySelection("health_based")
	observability.RecordProxyOutcome("1.2.3.4:8080", true)
	observability.RecordProxyOutcome("1.2.3.4:8080", false)
	observability.RecordProxyCircuitOpen("1.2.3.4:8080")
	observability.RecordRecordsScraped("tiktok", 10)
	observability.RecordRecordsUploaded("tiktok", 8)
	observability.SetQueueDepth(3)
}
