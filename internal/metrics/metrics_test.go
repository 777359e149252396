package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarrierMetrics(t *testing.T) {
	m := New("voice-test")

	m.CarrierAttempt("twilio", "make_call", false)
	m.CarrierAttempt("twilio", "make_call", false)
	m.CarrierAttempt("telnyx", "make_call", true)
	m.CarrierHealth("twilio", false)
	m.CarrierHealth("telnyx", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.carrierAttemptsTotal.WithLabelValues("twilio", "make_call", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.carrierAttemptsTotal.WithLabelValues("telnyx", "make_call", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.carrierHealthy.WithLabelValues("twilio")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.carrierHealthy.WithLabelValues("telnyx")))
}

func TestQueueDepthAndOutcomes(t *testing.T) {
	m := New("voice-test")

	m.QueueDepth("biz-1", 3)
	m.QueueDepth("biz-1", 1)
	m.DialOutcome("rate_limited")
	m.CampaignTransition("running")
	m.SessionCreated()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueDepth.WithLabelValues("biz-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dialOutcomesTotal.WithLabelValues("rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.campaignTransitions.WithLabelValues("running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboundSessionsTotal))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New("voice-test")
	m.InboundCall("queue")
	m.EventPublished("call:incoming")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.True(t, strings.Contains(out, `inbound_calls_total{action="queue",service="voice-test"} 1`), out)
	assert.True(t, strings.Contains(out, "events_published_total"))
	assert.True(t, strings.Contains(out, "go_goroutines"))
}
