package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/metrics"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsAndExports(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.ActivityCreated("coordinator")
	m.ActivityCreated("coordinator")
	m.PersistFailed("create")
	m.NotifyFailed("status_500")
	m.EventApplied("UPDATE", activity.MergeStale)
	m.Resubscribed()
	m.SessionsActive(3)

	server := httptest.NewServer(metrics.Handler(reg))
	defer server.Close()
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Contains(t, string(body), `agenthub_activities_created_total{source="coordinator"} 2`)
	require.Contains(t, string(body), `agenthub_realtime_events_total{result="stale",type="UPDATE"} 1`)
	require.Contains(t, string(body), `agenthub_active_sessions 3`)
}

func TestMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := metrics.New(reg)
	require.NoError(t, err)
	second, err := metrics.New(reg)
	require.NoError(t, err)

	first.Resubscribed()
	second.Resubscribed()

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "agenthub_realtime_resubscriptions_total" {
			found = true
			require.Len(t, f.GetMetric(), 1)
			require.Equal(t, 2.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	require.True(t, found)
}
