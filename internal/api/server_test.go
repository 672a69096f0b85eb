package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/speedtrap/internal/bus"
	"github.com/banshee-data/speedtrap/internal/db"
	"github.com/banshee-data/speedtrap/internal/display"
	"github.com/banshee-data/speedtrap/internal/monitoring"
	"github.com/banshee-data/speedtrap/internal/pipeline"
	"github.com/banshee-data/speedtrap/internal/queue"
	"github.com/banshee-data/speedtrap/internal/radar"
	"github.com/banshee-data/speedtrap/internal/testutil"
)

type fakePipeline struct {
	feed *bus.Topic[string]
}

func (f *fakePipeline) Stats() pipeline.Stats {
	return pipeline.Stats{
		SensorQueue: queue.Stats{Name: "sensor", Capacity: 8, Drops: 3},
		Display: display.TallyStats{
			WindowSize: 4,
			P50Speed:   72,
			P85Speed:   108,
			P98Speed:   126,
			MaxSpeed:   144,
		},
	}
}

func (f *fakePipeline) Limits() radar.Limits {
	return radar.Limits{DistanceMM: 4000, LightLimitKPH: 60, HeavyLimitKPH: 80, WarningPercent: 90}
}

func (f *fakePipeline) Pending() []uint32 { return []uint32{4, 9} }

func (f *fakePipeline) Feed() *bus.Topic[string] { return f.feed }

func newTestServer(t *testing.T) (*Server, *fakePipeline, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := monitoring.NewMetrics(reg)
	require.NoError(t, err)
	m.Vehicle("Infraction")

	p := &fakePipeline{feed: bus.NewTopic[string]("display.feed", 0)}
	return NewServer(p, reg), p, reg
}

func TestShowStats(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var got pipeline.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, uint64(3), got.SensorQueue.Drops)
}

func TestShowConfig(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.SetSite(&db.Site{ID: 2, Name: "north"})

	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got ConfigResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, uint32(80), got.Limits.HeavyLimitKPH)
	require.NotNil(t, got.Site)
	assert.Equal(t, "north", got.Site.Name)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t)
	for _, path := range []string{"/api/stats", "/api/config", "/api/speeds"} {
		w := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, path)
		assert.Contains(t, w.Body.String(), "method not allowed")
	}
}

func TestShowSpeeds(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		query string
		units string
		p50   float64
		max   float64
	}{
		{"", "kph", 72, 144},
		{"?units=kph", "kph", 72, 144},
		{"?units=mps", "mps", 20, 40},
		{"?units=mph", "mph", 44.7387, 89.4775},
	}
	for _, tt := range tests {
		t.Run(tt.units+tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/speeds"+tt.query, nil))

			require.Equal(t, http.StatusOK, w.Code)
			var got SpeedSummary
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.units, got.Units)
			assert.Equal(t, 4, got.Samples)
			assert.InDelta(t, tt.p50, got.P50, 0.001)
			assert.InDelta(t, tt.max, got.Max, 0.001)
		})
	}
}

func TestShowSpeeds_InvalidUnits(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/speeds?units=knots", nil))

	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	assert.Contains(t, w.Body.String(), "kph, mph, mps")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `speedtrap_vehicles_total{status="Infraction"} 1`)
}

func TestPendingRoute(t *testing.T) {
	s, _, _ := newTestServer(t)
	mux := http.NewServeMux()
	s.AttachAdminRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.LocalRequest(http.MethodGet, "/debug/pending"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pending":[4,9]}`, w.Body.String())
}

func TestTailRoute(t *testing.T) {
	s, p, _ := newTestServer(t)
	mux := http.NewServeMux()
	s.AttachAdminRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/debug/tail", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	ping, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", ping)

	require.Eventually(t, func() bool { return p.feed.Stats().Subscribers == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.feed.Publish(ctx, "#1 Light speed=36"))

	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			assert.Equal(t, "data: #1 Light speed=36\n", line)
			break
		}
	}
}

// brokenStream accepts headers but fails every body write.
type brokenStream struct {
	*httptest.ResponseRecorder
}

func (b brokenStream) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestTailRoute_ClientGone(t *testing.T) {
	s, p, _ := newTestServer(t)
	mux := http.NewServeMux()
	s.AttachAdminRoutes(mux)

	done := make(chan struct{})
	go func() {
		defer close(done)
		mux.ServeHTTP(brokenStream{httptest.NewRecorder()}, testutil.LocalRequest(http.MethodGet, "/debug/tail"))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tail handler kept running after the initial write failed")
	}
	assert.Equal(t, 0, p.feed.Stats().Subscribers)
}

func TestTailRoute_MethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t)
	mux := http.NewServeMux()
	s.AttachAdminRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.LocalRequest(http.MethodPost, "/debug/tail"))
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestLoggingMiddleware(t *testing.T) {
	var logged string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = format
	})
	defer monitoring.SetLogger(nil)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Contains(t, logged, "ms")
}

func TestStatusCodeColor(t *testing.T) {
	tests := []struct {
		code  int
		color string
	}{
		{200, colorBoldGreen},
		{304, colorYellow},
		{404, colorBoldRed},
		{500, colorBoldRed},
	}
	for _, tt := range tests {
		result := statusCodeColor(tt.code)
		if !strings.HasPrefix(result, tt.color) {
			t.Errorf("statusCodeColor(%d) = %q, expected prefix %q", tt.code, result, tt.color)
		}
	}
	if statusCodeColor(100) != "100" {
		t.Errorf("statusCodeColor(100) = %q", statusCodeColor(100))
	}
}
