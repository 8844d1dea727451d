package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodPost, "/api/v1/inspect", http.StatusOK, 10*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/api/v1/inspect", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/api/v1/inspect", http.StatusBadRequest, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/inspect", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/inspect", "400")))
}

func TestObserveDocument(t *testing.T) {
	m := New()
	m.ObserveDocument("certificate", true)
	m.ObserveDocument("", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("certificate", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("unknown", "error")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveDocument("pkcs12", true)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `derpki_inspect_documents_total{kind="pkcs12",result="ok"} 1`)
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveDocument("der", true)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.documents.WithLabelValues("der", "ok")))
}
