package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/logwatch/internal/health"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/logging"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServerServesMetricsAndHealth(t *testing.T) {
	collector := metrics.NewCollector()
	collector.LineRead("/var/log/app.log")

	checker := health.NewChecker(time.Second)
	checker.Register("sources", health.SourceCheck(func() []types.SourceStatus {
		return []types.SourceStatus{
			{Path: "/var/log/app.log", State: types.SourceActive},
			{Path: "/var/log/gone.log", State: types.SourceDropped},
		}
	}))

	s := New(Config{
		Address:         "127.0.0.1:0",
		MetricsRegistry: collector.Registry(),
		HealthChecker:   checker,
		Logger:          logging.Nop(),
	})
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	base := "http://" + s.Addr()

	code, body := get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `logwatch_source_lines_read_total{source="/var/log/app.log"} 1`)

	code, body = get(t, base+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, strings.Contains(body, `"status":"degraded"`), body)
}

func TestServerStartFailsOnBusyAddress(t *testing.T) {
	first := New(Config{Address: "127.0.0.1:0"})
	require.NoError(t, first.Start())
	defer first.Stop(context.Background())

	second := New(Config{Address: first.Addr()})
	assert.Error(t, second.Start())
}

func TestStopWithoutStart(t *testing.T) {
	assert.NoError(t, New(Config{}).Stop(context.Background()))
}
