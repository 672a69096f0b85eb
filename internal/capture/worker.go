package capture

import (
	"context"
	"errors"

	"github.com/banshee-data/speedtrap/internal/bus"
	"github.com/banshee-data/speedtrap/internal/monitoring"
)

// DefaultSubscriptionDepth is the request backlog a worker buffers.
const DefaultSubscriptionDepth = 8

// Worker serves capture requests one at a time.
type Worker struct {
	capturer Capturer
	requests *bus.Topic[Request]
	results  *bus.Topic[Result]
	metrics  *monitoring.Metrics

	sub *bus.Subscription[Request]
}

// NewWorker subscribes to requests immediately so that no request published
// after NewWorker returns is missed.
func NewWorker(c Capturer, requests *bus.Topic[Request], results *bus.Topic[Result], m *monitoring.Metrics) *Worker {
	return &Worker{
		capturer: c,
		requests: requests,
		results:  results,
		metrics:  m,
		sub:      requests.Subscribe(DefaultSubscriptionDepth),
	}
}

// Run processes requests until ctx is done or the request topic closes.
func (w *Worker) Run(ctx context.Context) error {
	defer w.requests.Unsubscribe(w.sub.ID())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-w.sub.C():
			if !ok {
				return nil
			}
			if err := w.handle(ctx, req); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, req Request) error {
	res, err := w.capturer.Capture(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// no result can be produced; report the read as failed
		monitoring.Logf("[camera] capture of sample %d failed: %v", req.SampleID, err)
		res = Result{SampleID: req.SampleID}
	}
	w.metrics.Capture(res.Outcome())

	if err := w.results.Publish(ctx, res); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		w.metrics.PublishFailure(w.results.Name())
		monitoring.Warnf("capture result for sample %d not published: %v", req.SampleID, err)
	}
	return nil
}
