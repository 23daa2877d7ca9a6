package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PushSink_FlushHitsGateway(t *testing.T) {
	var hits atomic.Int64
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotPath.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := NewPushSink(srv.URL, time.Minute, logger)

	sink.PushMetric("executions_total", 3)
	sink.PushMetric("executions_total", 4)
	sink.flush()

	require.Equal(t, int64(1), hits.Load(), "coalesced updates push once")
	assert.Equal(t, "/metrics/job/smooth_trade", gotPath.Load())
}

func Test_PushSink_FailureIsSwallowed(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := NewPushSink("http://127.0.0.1:1", time.Minute, logger)

	// Must not panic or block; failures are logged only.
	sink.PushMetric("net_profit", -0.01)
	sink.flush()
}

func Test_NopSink(t *testing.T) {
	NopSink{}.PushMetric("anything", 1)
}
