package display

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/speedtrap/internal/bus"
	"github.com/banshee-data/speedtrap/internal/monitoring"
	"github.com/banshee-data/speedtrap/internal/queue"
	"github.com/banshee-data/speedtrap/internal/radar"
)

// Sink drains the display queue and renders every record exactly once, in
// the order it was queued.
type Sink struct {
	in    *queue.Queue[radar.DisplayRecord]
	color bool
	tally *Tally
	feed  *bus.Topic[string]

	// mu serializes writes to out.
	mu  sync.Mutex
	out io.Writer
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithColor enables ANSI status colors.
func WithColor(on bool) SinkOption {
	return func(s *Sink) { s.color = on }
}

// WithFeed publishes every rendered line (without colors) to topic, which
// backs the live tail.
func WithFeed(topic *bus.Topic[string]) SinkOption {
	return func(s *Sink) { s.feed = topic }
}

// WithTally sets the tally updated for every rendered record.
func WithTally(t *Tally) SinkOption {
	return func(s *Sink) { s.tally = t }
}

// NewSink creates a sink reading from in and writing lines to out.
func NewSink(in *queue.Queue[radar.DisplayRecord], out io.Writer, opts ...SinkOption) *Sink {
	s := &Sink{in: in, out: out}
	for _, opt := range opts {
		opt(s)
	}
	if s.tally == nil {
		s.tally = NewTally(DefaultTallyWindow)
	}
	return s
}

// Tally returns the sink's running tally.
func (s *Sink) Tally() *Tally { return s.tally }

// Run renders records until ctx is done.
func (s *Sink) Run(ctx context.Context) error {
	for {
		rec, err := s.in.Get(ctx)
		if err != nil {
			return err
		}
		s.show(ctx, rec)
	}
}

func (s *Sink) show(ctx context.Context, rec radar.DisplayRecord) {
	s.mu.Lock()
	_, err := fmt.Fprintln(s.out, Render(rec, s.color))
	s.mu.Unlock()
	if err != nil {
		monitoring.Logf("[display] write failed: %v", err)
	}
	s.tally.Add(rec)

	if s.feed == nil {
		return
	}
	// a slow tail viewer delays the display by at most the topic timeout
	if err := s.feed.Publish(ctx, Render(rec, false)); err != nil && ctx.Err() == nil {
		monitoring.Logf("[display] feed: %v", err)
	}
}
