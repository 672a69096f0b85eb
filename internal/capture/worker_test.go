package capture

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/speedtrap/internal/bus"
	"github.com/banshee-data/speedtrap/internal/monitoring"
)

// scriptedCapturer returns canned results keyed by sample id.
type scriptedCapturer struct {
	mu    sync.Mutex
	seen  []uint32
	plate map[uint32]string
	err   error
}

func (s *scriptedCapturer) Capture(ctx context.Context, req Request) (Result, error) {
	s.mu.Lock()
	s.seen = append(s.seen, req.SampleID)
	s.mu.Unlock()
	if s.err != nil {
		return Result{}, s.err
	}
	plate, ok := s.plate[req.SampleID]
	return Result{SampleID: req.SampleID, Success: ok, Plate: plate, PlateValid: ok}, nil
}

func startWorker(t *testing.T, c Capturer) (*bus.Topic[Request], *bus.Subscription[Result], context.CancelFunc, <-chan error) {
	t.Helper()
	requests := bus.NewTopic[Request]("capture.request", 0)
	results := bus.NewTopic[Result]("capture.result", 0)
	out := results.Subscribe(16)

	w := NewWorker(c, requests, results, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return requests, out, cancel, done
}

func recv(t *testing.T, sub *bus.Subscription[Result]) Result {
	t.Helper()
	select {
	case r := <-sub.C():
		return r
	case <-time.After(time.Second):
		t.Fatal("no capture result")
	}
	return Result{}
}

func TestWorker_OneResultPerRequest(t *testing.T) {
	c := &scriptedCapturer{plate: map[uint32]string{1: "ABC1D23", 3: "XYZ9A00"}}
	requests, out, cancel, done := startWorker(t, c)

	for id := uint32(1); id <= 3; id++ {
		require.NoError(t, requests.Publish(context.Background(), Request{SampleID: id}))
	}

	got := map[uint32]Result{}
	for i := 0; i < 3; i++ {
		r := recv(t, out)
		got[r.SampleID] = r
	}
	assert.True(t, got[1].Success)
	assert.Equal(t, "ABC1D23", got[1].Plate)
	assert.False(t, got[2].Success)
	assert.True(t, got[3].Success)

	select {
	case r := <-out.C():
		t.Fatalf("unexpected extra result %+v", r)
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 0, requests.Stats().Subscribers, "worker unsubscribes on exit")
}

func TestWorker_CapturerErrorReportsFailure(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(log.Printf)

	c := &scriptedCapturer{err: errors.New("camera offline")}
	requests, out, cancel, done := startWorker(t, c)
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, requests.Publish(context.Background(), Request{SampleID: 9}))
	r := recv(t, out)
	assert.Equal(t, uint32(9), r.SampleID)
	assert.False(t, r.Success)
	assert.False(t, r.PlateValid)
}

func TestWorker_StopsWhenRequestTopicCloses(t *testing.T) {
	requests, _, cancel, done := startWorker(t, &scriptedCapturer{})
	defer cancel()

	requests.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestResult_Outcome(t *testing.T) {
	assert.Equal(t, "success", Result{Success: true}.Outcome())
	assert.Equal(t, "failure", Result{}.Outcome())
}

func TestWorker_CountsCapturesByOutcome(t *testing.T) {
	m, err := monitoring.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	requests := bus.NewTopic[Request]("capture.request", 0)
	results := bus.NewTopic[Result]("capture.result", 0)
	out := results.Subscribe(4)
	w := NewWorker(&scriptedCapturer{plate: map[uint32]string{1: "ABC1D23"}}, requests, results, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, requests.Publish(context.Background(), Request{SampleID: 1}))
	require.NoError(t, requests.Publish(context.Background(), Request{SampleID: 2}))
	recv(t, out)
	recv(t, out)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Captures.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Captures.WithLabelValues("failure")))
}
