package observability

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServer_ServeAndShutdown(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewRetryMetrics(reg, "srv")
	require.NoError(t, err)
	metrics.waits.Inc()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ms := NewMetricsServer(listener.Addr().String(), "/metrics", reg, zerolog.Nop())

	errCh := make(chan error, 1)
	go func() {
		errCh <- ms.Serve(listener)
	}()

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.Contains(t, string(body), "srv_retry_waits_total 1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ms.Shutdown(ctx))
	assert.Equal(t, http.ErrServerClosed, <-errCh)
}

func TestNewMetricsServer_DefaultPath(t *testing.T) {
	ms := NewMetricsServer(":0", "", prometheus.NewRegistry(), zerolog.Nop())
	assert.NotNil(t, ms.server)
}
