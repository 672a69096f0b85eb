package capture

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/banshee-data/speedtrap/internal/radar"
	"github.com/banshee-data/speedtrap/internal/timeutil"
)

// Simulated camera defaults.
const (
	DefaultMinDelay       = 120 * time.Millisecond
	DefaultMaxDelay       = 320 * time.Millisecond
	DefaultFailurePercent = 10
)

// MakePlate returns a random Mercosul plate (LLLDLDD). With forceInvalid it
// returns the malformed "XX" + four digits string a failed read produces.
func MakePlate(rng *rand.Rand, forceInvalid bool) string {
	if forceInvalid {
		return fmt.Sprintf("XX%04d", rng.IntN(10000))
	}
	letter := func() byte { return byte('A' + rng.IntN(26)) }
	digit := func() byte { return byte('0' + rng.IntN(10)) }
	return string([]byte{letter(), letter(), letter(), digit(), letter(), digit(), digit()})
}

// Simulated is a stand-in camera: it waits a random delay, then fails with
// FailurePercent probability or reads a well-formed plate.
type Simulated struct {
	Clock          timeutil.Clock
	FailurePercent uint32
	MinDelay       time.Duration
	MaxDelay       time.Duration

	// rng is not safe for concurrent use.
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated capturer. A nil clock selects the real
// clock.
func NewSimulated(clock timeutil.Clock, rng *rand.Rand, failurePercent uint32, minDelay, maxDelay time.Duration) *Simulated {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Simulated{
		Clock:          clock,
		FailurePercent: failurePercent,
		MinDelay:       minDelay,
		MaxDelay:       maxDelay,
		rng:            rng,
	}
}

// draw picks the delay, the outcome and the plate in one critical section.
func (s *Simulated) draw() (time.Duration, bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.MinDelay
	if span := s.MaxDelay - s.MinDelay; span > 0 {
		delay += time.Duration(s.rng.Int64N(int64(span) + 1))
	}
	failed := uint32(s.rng.IntN(100)) < s.FailurePercent
	return delay, !failed, MakePlate(s.rng, failed)
}

// Capture simulates the read. It returns ctx.Err() if ctx is done before the
// delay elapses.
func (s *Simulated) Capture(ctx context.Context, req Request) (Result, error) {
	delay, ok, plate := s.draw()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-s.Clock.After(delay):
	}

	return Result{
		SampleID:   req.SampleID,
		Success:    ok,
		Plate:      plate,
		PlateValid: radar.PlateIsValid(plate),
	}, nil
}
