package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_Counters(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncStateTransition("Created", "Starting")
	pr.IncStateTransition("Created", "Starting")
	pr.IncSignalDropped("charging")
	pr.IncAssetMaterialized("obfs4proxy", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(pr.transitions.WithLabelValues("Created", "Starting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.dropped.WithLabelValues("charging")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.assets.WithLabelValues("obfs4proxy", "failure")))
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncEngineCall("start")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "ouinet_shell_engine_calls_total"))
}

func TestOr(t *testing.T) {
	assert.Equal(t, NoopRecorder{}, Or(nil))

	pr := NewPrometheusRecorder(nil)
	assert.Same(t, pr, Or(pr))
}
