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

func TestObserveProvider(t *testing.T) {
	before := testutil.ToFloat64(ProviderCalls.WithLabelValues("gemini", "error"))
	ObserveProvider("gemini", false, 120*time.Millisecond)
	ObserveProvider("gemini", true, 80*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(ProviderCalls.WithLabelValues("gemini", "error")))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(ProviderLatency), 1)
}

func TestObserveNotification(t *testing.T) {
	sent := testutil.ToFloat64(Notifications.WithLabelValues("discord", "sent"))
	failed := testutil.ToFloat64(Notifications.WithLabelValues("discord", "failed"))

	ObserveNotification("discord", true)
	ObserveNotification("discord", false)
	ObserveNotification("discord", false)

	assert.Equal(t, sent+1, testutil.ToFloat64(Notifications.WithLabelValues("discord", "sent")))
	assert.Equal(t, failed+2, testutil.ToFloat64(Notifications.WithLabelValues("discord", "failed")))
}

func TestHandler_Exposition(t *testing.T) {
	QueriesTotal.Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "triquery_queries_total")
	assert.Contains(t, string(body), "go_goroutines")
}
