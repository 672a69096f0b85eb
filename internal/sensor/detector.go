// Package sensor turns the two raw pulse signals of a sensor pair into
// crossing events. Pulse A fires at the first sensor once per axle; pulse B
// fires at the second sensor and completes the crossing.
package sensor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/speedtrap/internal/monitoring"
	"github.com/banshee-data/speedtrap/internal/queue"
	"github.com/banshee-data/speedtrap/internal/timeutil"
)

// CrossingEvent is one vehicle's completed passage over the sensor pair.
type CrossingEvent struct {
	ID        uint32        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed"`
	Axles     uint32        `json:"axles"`
}

// ElapsedMS returns the transit time in whole milliseconds, saturating at
// the uint32 range.
func (e CrossingEvent) ElapsedMS() uint32 {
	ms := e.Elapsed.Milliseconds()
	switch {
	case ms < 0:
		return 0
	case ms > int64(^uint32(0)):
		return ^uint32(0)
	}
	return uint32(ms)
}

// Emitter receives completed crossings. *queue.Queue[CrossingEvent]
// satisfies it.
type Emitter interface {
	TryPut(CrossingEvent) error
}

// Pulser is anything that accepts the two sensor signals.
type Pulser interface {
	PulseA()
	PulseB() (CrossingEvent, bool)
}

// Detector is the IDLE/ACTIVE edge state machine. PulseA and PulseB may be
// called from different goroutines.
type Detector struct {
	// mu guards the crossing in progress and is never held while emitting.
	mu     sync.Mutex
	active bool
	axles  uint32
	start  time.Time

	samples atomic.Uint32
	dropped atomic.Uint64

	clock   timeutil.Clock
	out     Emitter
	metrics *monitoring.Metrics
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithClock sets the clock used to time crossings.
func WithClock(c timeutil.Clock) DetectorOption {
	return func(d *Detector) {
		d.clock = c
	}
}

// WithMetrics counts dropped crossings.
func WithMetrics(m *monitoring.Metrics) DetectorOption {
	return func(d *Detector) {
		d.metrics = m
	}
}

// NewDetector creates an idle detector that hands crossings to out.
func NewDetector(out Emitter, opts ...DetectorOption) *Detector {
	d := &Detector{
		clock: timeutil.RealClock{},
		out:   out,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// PulseA registers an axle at the first sensor. The first axle of a vehicle
// starts the crossing timer; later axles only increment the count.
func (d *Detector) PulseA() {
	now := d.clock.Now()

	d.mu.Lock()
	if !d.active {
		d.active = true
		d.start = now
		d.axles = 0
	}
	d.axles++
	d.mu.Unlock()
}

// PulseB completes the crossing in progress and emits it. With no crossing
// in progress the pulse is ignored and ok is false.
//
// A full output queue drops the event with a warning; the detector still
// returns to idle.
func (d *Detector) PulseB() (evt CrossingEvent, ok bool) {
	now := d.clock.Now()

	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return CrossingEvent{}, false
	}
	elapsed := now.Sub(d.start)
	axles := d.axles
	d.active = false
	d.axles = 0
	d.start = time.Time{}
	d.mu.Unlock()

	evt = CrossingEvent{
		ID:        d.samples.Add(1),
		Timestamp: now,
		Elapsed:   elapsed,
		Axles:     axles,
	}

	if err := d.out.TryPut(evt); err != nil {
		d.dropped.Add(1)
		d.metrics.QueueDrop("sensor")
		if errors.Is(err, queue.ErrFull) {
			monitoring.Warnf("sensor queue full; sample %d dropped", evt.ID)
		} else {
			monitoring.Warnf("sample %d dropped: %v", evt.ID, err)
		}
	}
	return evt, true
}

// State returns whether a crossing is in progress and its axle count so far.
func (d *Detector) State() (active bool, axles uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active, d.axles
}

// Dropped returns the number of crossings lost to a full output queue.
func (d *Detector) Dropped() uint64 {
	return d.dropped.Load()
}

// LastID returns the most recently assigned sample id (zero before the first
// crossing).
func (d *Detector) LastID() uint32 {
	return d.samples.Load()
}
