package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "fallo_sistema")

	m.ObserveDiagnosis("fault", time.Millisecond)
	m.ObserveDiagnosis("no-fault", time.Millisecond)
	m.ObserveDiagnosis("no-fault", time.Millisecond)
	m.ObserveError("discretize")
	m.ObserveRPC("Query", "OK", 2*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.diagnoses.WithLabelValues("fault")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.diagnoses.WithLabelValues("no-fault")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("discretize")))
	// two counters + two histograms by label, one error, one rpc
	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "fallo_sistema")
	m.ObserveDiagnosis("fault", time.Millisecond)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `diagnoser_diagnoses_total{label="fault",model="fallo_sistema"} 1`))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, "a")
	assert.Panics(t, func() { New(reg, "a") })
}
