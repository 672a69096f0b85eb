package pipeline

import (
	"context"

	"github.com/banshee-data/speedtrap/internal/bus"
	"github.com/banshee-data/speedtrap/internal/capture"
	"github.com/banshee-data/speedtrap/internal/correlation"
	"github.com/banshee-data/speedtrap/internal/monitoring"
	"github.com/banshee-data/speedtrap/internal/queue"
	"github.com/banshee-data/speedtrap/internal/radar"
)

// Listener matches capture results back to their pending records and queues
// the completed records for display.
type Listener struct {
	results *bus.Topic[capture.Result]
	sub     *bus.Subscription[capture.Result]
	table   *correlation.Table[radar.DisplayRecord]
	display *queue.Queue[radar.DisplayRecord]
	metrics *monitoring.Metrics
}

// Run consumes results until ctx is done or the result topic closes.
func (l *Listener) Run(ctx context.Context) error {
	defer l.results.Unsubscribe(l.sub.ID())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-l.sub.C():
			if !ok {
				return nil
			}
			l.handle(res)
		}
	}
}

func (l *Listener) handle(res capture.Result) {
	if !res.Success {
		monitoring.Warnf("capture failed for sample %d", res.SampleID)
	}

	rec, ok := l.table.Take(res.SampleID)
	if !ok {
		// evicted, or already completed
		l.metrics.CorrelationEvent("miss")
		return
	}
	l.metrics.CorrelationEvent("take")

	if res.Success {
		rec = rec.WithPlate(res.Plate, res.PlateValid)
	} else {
		rec = rec.WithPlate(radar.CaptureFailedMarker, false)
	}
	_ = l.display.TryPut(rec)
}
