package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("deposit", "ok")
	m.ObserveOperation("deposit", "ok")
	m.ObserveOperation("deposit", "invalid_payment")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("deposit", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("deposit", "invalid_payment")))
}

func TestSetState(t *testing.T) {
	m := New()

	m.SetState(model.State{TotalDeposits: 95, Custodied: 100, Paused: true})

	assert.Equal(t, 95.0, testutil.ToFloat64(m.totalDeposits))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.custodied))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paused))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("deposit", "ok")
	m.SetState(model.State{})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveOperation("withdraw", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "commentpass_ledger_operations_total"))
}
