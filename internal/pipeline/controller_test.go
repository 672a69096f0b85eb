package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/speedtrap/internal/bus"
	"github.com/banshee-data/speedtrap/internal/capture"
	"github.com/banshee-data/speedtrap/internal/correlation"
	"github.com/banshee-data/speedtrap/internal/queue"
	"github.com/banshee-data/speedtrap/internal/radar"
	"github.com/banshee-data/speedtrap/internal/sensor"
)

func newTestController(displayCap, tableCap int) *Controller {
	return &Controller{
		limits:   testLimits,
		in:       queue.New[sensor.CrossingEvent]("sensor", 8),
		display:  queue.New[radar.DisplayRecord]("display", displayCap),
		table:    correlation.New[radar.DisplayRecord](tableCap),
		requests: bus.NewTopic[capture.Request]("capture.request", time.Millisecond),
	}
}

func crossing(id, axles uint32, elapsed time.Duration) sensor.CrossingEvent {
	return sensor.CrossingEvent{ID: id, Axles: axles, Elapsed: elapsed}
}

func TestController_NormalVehicleNotStored(t *testing.T) {
	c := newTestController(8, 8)
	sub := c.requests.Subscribe(4)

	c.handle(context.Background(), crossing(1, 3, 300*time.Millisecond))

	rec, err := c.display.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, radar.Classification{
		Type: radar.VehicleHeavy, SpeedKPH: 48, LimitKPH: 80, WarningKPH: 72, Status: radar.StatusNormal,
	}, rec.Classification)
	assert.Zero(t, c.table.Len())
	assert.Empty(t, sub.C())
}

func TestController_InfractionStoresThenPublishes(t *testing.T) {
	c := newTestController(8, 8)
	sub := c.requests.Subscribe(4)

	c.handle(context.Background(), crossing(5, 3, 100*time.Millisecond))

	assert.Equal(t, []uint32{5}, c.table.IDs())
	require.Len(t, sub.C(), 1)
	assert.Equal(t, uint32(5), (<-sub.C()).SampleID)
}

func TestController_FullDisplayQueueStillRequestsCapture(t *testing.T) {
	c := newTestController(1, 8)
	sub := c.requests.Subscribe(4)

	c.handle(context.Background(), crossing(1, 2, 400*time.Millisecond))
	c.handle(context.Background(), crossing(2, 2, 100*time.Millisecond))

	assert.Equal(t, 1, c.display.Len())
	assert.Equal(t, uint64(1), c.display.Stats().Drops)
	assert.Equal(t, []uint32{2}, c.table.IDs())
	assert.Len(t, sub.C(), 1)
}

func TestController_PublishFailureKeepsPendingEntry(t *testing.T) {
	c := newTestController(8, 8)
	c.requests.Subscribe(1) // never drained

	c.handle(context.Background(), crossing(1, 2, 100*time.Millisecond))
	c.handle(context.Background(), crossing(2, 2, 100*time.Millisecond))

	assert.Equal(t, []uint32{1, 2}, c.table.IDs())
	assert.Equal(t, uint64(1), c.requests.Stats().Timeouts)
}

func TestController_OverflowEvictsFirstSlot(t *testing.T) {
	c := newTestController(16, 2)
	for id := uint32(1); id <= 3; id++ {
		c.handle(context.Background(), crossing(id, 2, 100*time.Millisecond))
	}
	assert.Equal(t, []uint32{2, 3}, c.table.IDs())
	assert.Equal(t, uint64(1), c.table.Stats().Evictions)
}
