package cmd

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samwightt/gqlblind/pkg/logger"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var metricsAddrRegex = regexp.MustCompile(`msg="serving metrics" addr=(\S+)`)

func startMetrics(t *testing.T, out *lockedBuffer) (string, func(context.Context)) {
	t.Helper()
	shutdown, err := serveMetrics("127.0.0.1:0", prometheus.NewRegistry(), logger.New(out, 1))
	require.NoError(t, err)

	m := metricsAddrRegex.FindStringSubmatch(out.String())
	require.Len(t, m, 2)
	return m[1], shutdown
}

func TestServeMetrics(t *testing.T) {
	var out lockedBuffer
	addr, shutdown := startMetrics(t, &out)

	hc := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := hc.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	shutdown(context.Background())
	assert.NotContains(t, out.String(), "metrics server shutdown failed")

	_, err = hc.Get("http://" + addr + "/metrics")
	assert.Error(t, err)
}

func TestServeMetrics_ShutdownErrorIsLogged(t *testing.T) {
	var out lockedBuffer
	addr, shutdown := startMetrics(t, &out)

	// A connection that never sends a request keeps the server from going
	// quiet, so Shutdown returns once ctx is done.
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "state=new")
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	shutdown(ctx)

	logs := out.String()
	assert.Contains(t, logs, `msg="metrics server shutdown failed"`)
	assert.Contains(t, logs, "context canceled")
}
