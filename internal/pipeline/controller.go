package pipeline

import (
	"context"

	"github.com/banshee-data/speedtrap/internal/bus"
	"github.com/banshee-data/speedtrap/internal/capture"
	"github.com/banshee-data/speedtrap/internal/correlation"
	"github.com/banshee-data/speedtrap/internal/monitoring"
	"github.com/banshee-data/speedtrap/internal/queue"
	"github.com/banshee-data/speedtrap/internal/radar"
	"github.com/banshee-data/speedtrap/internal/sensor"
)

// Controller is the control stage: it classifies each crossing, queues the
// record for display and, for an infraction, parks the record in the
// correlation table and requests a capture.
type Controller struct {
	limits   radar.Limits
	in       *queue.Queue[sensor.CrossingEvent]
	display  *queue.Queue[radar.DisplayRecord]
	table    *correlation.Table[radar.DisplayRecord]
	requests *bus.Topic[capture.Request]
	metrics  *monitoring.Metrics
}

// Run processes crossings until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	for {
		evt, err := c.in.Get(ctx)
		if err != nil {
			return err
		}
		c.handle(ctx, evt)
	}
}

func (c *Controller) handle(ctx context.Context, evt sensor.CrossingEvent) {
	rec := radar.DisplayRecord{
		ID:             evt.ID,
		Classification: c.limits.Classify(evt.Axles, evt.ElapsedMS()),
	}
	c.metrics.Vehicle(rec.Status.String())

	// a full display queue reports through its drop callback
	_ = c.display.TryPut(rec)

	if rec.Status != radar.StatusInfraction {
		return
	}

	if evicted, ok := c.table.Store(rec.ID, rec); ok {
		c.metrics.CorrelationEvent("evict")
		monitoring.Warnf("correlation table full; sample %d evicted for sample %d", evicted, rec.ID)
	}
	c.metrics.CorrelationEvent("store")

	req := capture.Request{
		SampleID: rec.ID,
		Type:     rec.Type,
		SpeedKPH: rec.SpeedKPH,
		LimitKPH: rec.LimitKPH,
	}
	// the stored entry stays in place even if nobody receives the request
	if err := c.requests.Publish(ctx, req); err != nil && ctx.Err() == nil {
		c.metrics.PublishFailure(c.requests.Name())
		monitoring.Warnf("capture request for sample %d not published: %v", rec.ID, err)
	}
}
