// Package pipeline wires the stages between the edge detector and the
// display: the control stage, the capture worker, the capture-result
// listener and the display sink, joined by two bounded queues and two
// publish/subscribe topics.
package pipeline

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/speedtrap/internal/bus"
	"github.com/banshee-data/speedtrap/internal/capture"
	"github.com/banshee-data/speedtrap/internal/correlation"
	"github.com/banshee-data/speedtrap/internal/display"
	"github.com/banshee-data/speedtrap/internal/monitoring"
	"github.com/banshee-data/speedtrap/internal/queue"
	"github.com/banshee-data/speedtrap/internal/radar"
	"github.com/banshee-data/speedtrap/internal/sensor"
	"github.com/banshee-data/speedtrap/internal/timeutil"
)

// Topic and queue names, used in logs, stats and metric labels.
const (
	SensorQueueName  = "sensor"
	DisplayQueueName = "display"
	RequestTopicName = "capture.request"
	ResultTopicName  = "capture.result"
	FeedTopicName    = "display.feed"
)

// DefaultCapacity is the reference size of both queues and the correlation
// table.
const DefaultCapacity = 8

const resultSubDepth = 8

// Options configures a Pipeline. Zero values select the defaults.
type Options struct {
	Limits         radar.Limits
	QueueCapacity  int
	TableCapacity  int
	Eviction       correlation.EvictionPolicy
	PublishTimeout time.Duration

	// Capturer defaults to a simulated camera built from the Camera fields.
	Capturer             capture.Capturer
	CameraFailurePercent uint32
	CameraMinDelay       time.Duration
	CameraMaxDelay       time.Duration
	Clock                timeutil.Clock
	Rand                 *rand.Rand

	Output      io.Writer
	Color       bool
	TallyWindow int
	Metrics     *monitoring.Metrics
}

// Stats is a snapshot of every stage's counters.
type Stats struct {
	SensorQueue  queue.Stats        `json:"sensor_queue"`
	DisplayQueue queue.Stats        `json:"display_queue"`
	Requests     bus.Stats          `json:"capture_requests"`
	Results      bus.Stats          `json:"capture_results"`
	Feed         bus.Stats          `json:"feed"`
	Correlation  correlation.Stats  `json:"correlation"`
	Display      display.TallyStats `json:"display"`
}

// Pipeline owns the queues, topics and correlation table shared by the
// stages.
type Pipeline struct {
	limits   radar.Limits
	sensorQ  *queue.Queue[sensor.CrossingEvent]
	displayQ *queue.Queue[radar.DisplayRecord]
	requests *bus.Topic[capture.Request]
	results  *bus.Topic[capture.Result]
	feed     *bus.Topic[string]
	table    *correlation.Table[radar.DisplayRecord]

	controller *Controller
	worker     *capture.Worker
	listener   *Listener
	sink       *display.Sink
}

// New builds a pipeline. Subscriptions are made here, so requests and
// results published once New returns are never missed.
func New(opts Options) *Pipeline {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultCapacity
	}
	if opts.TableCapacity <= 0 {
		opts.TableCapacity = DefaultCapacity
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Capturer == nil {
		minDelay, maxDelay := opts.CameraMinDelay, opts.CameraMaxDelay
		if minDelay == 0 && maxDelay == 0 {
			minDelay, maxDelay = capture.DefaultMinDelay, capture.DefaultMaxDelay
		}
		opts.Capturer = capture.NewSimulated(opts.Clock, opts.Rand, opts.CameraFailurePercent, minDelay, maxDelay)
	}
	m := opts.Metrics

	p := &Pipeline{
		limits:  opts.Limits,
		sensorQ: queue.New[sensor.CrossingEvent](SensorQueueName, opts.QueueCapacity),
		displayQ: queue.New[radar.DisplayRecord](DisplayQueueName, opts.QueueCapacity,
			queue.WithDropCallback[radar.DisplayRecord](func(rec radar.DisplayRecord) {
				m.QueueDrop(DisplayQueueName)
				monitoring.Warnf("display queue full; sample %d dropped", rec.ID)
			})),
		requests: bus.NewTopic[capture.Request](RequestTopicName, opts.PublishTimeout),
		results:  bus.NewTopic[capture.Result](ResultTopicName, opts.PublishTimeout),
		feed:     bus.NewTopic[string](FeedTopicName, opts.PublishTimeout),
		table: correlation.New[radar.DisplayRecord](opts.TableCapacity,
			correlation.WithEvictionPolicy(opts.Eviction)),
	}

	p.controller = &Controller{
		limits:   opts.Limits,
		in:       p.sensorQ,
		display:  p.displayQ,
		table:    p.table,
		requests: p.requests,
		metrics:  m,
	}
	p.worker = capture.NewWorker(opts.Capturer, p.requests, p.results, m)
	p.listener = &Listener{
		results: p.results,
		sub:     p.results.Subscribe(resultSubDepth),
		table:   p.table,
		display: p.displayQ,
		metrics: m,
	}
	p.sink = display.NewSink(p.displayQ, opts.Output,
		display.WithColor(opts.Color),
		display.WithFeed(p.feed),
		display.WithTally(display.NewTally(opts.TallyWindow)))
	return p
}

// Emitter returns the sensor queue the edge detector feeds.
func (p *Pipeline) Emitter() sensor.Emitter { return p.sensorQ }

// Feed returns the topic carrying every rendered display line.
func (p *Pipeline) Feed() *bus.Topic[string] { return p.feed }

// Limits returns the limits the control stage classifies with.
func (p *Pipeline) Limits() radar.Limits { return p.limits }

// Pending returns the sample ids awaiting a capture result.
func (p *Pipeline) Pending() []uint32 { return p.table.IDs() }

// Run runs the control stage, capture worker, result listener and display
// sink until ctx is cancelled. A cancelled context is a clean stop and
// returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.controller.Run(gctx) })
	g.Go(func() error { return p.worker.Run(gctx) })
	g.Go(func() error { return p.listener.Run(gctx) })
	g.Go(func() error { return p.sink.Run(gctx) })

	err := g.Wait()
	p.requests.Close()
	p.results.Close()
	p.feed.Close()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Stats snapshots every stage.
func (p *Pipeline) Stats() Stats {
	return Stats{
		SensorQueue:  p.sensorQ.Stats(),
		DisplayQueue: p.displayQ.Stats(),
		Requests:     p.requests.Stats(),
		Results:      p.results.Stats(),
		Feed:         p.feed.Stats(),
		Correlation:  p.table.Stats(),
		Display:      p.sink.Tally().Stats(),
	}
}
