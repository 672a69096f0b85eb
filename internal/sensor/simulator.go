package sensor

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/banshee-data/speedtrap/internal/radar"
	"github.com/banshee-data/speedtrap/internal/timeutil"
)

// Traffic generator timings.
const (
	AxleGap       = 50 * time.Millisecond
	AxleGapJitter = 10 // ms
	CarGap        = 700 * time.Millisecond
	CarGapJitter  = 400 // ms
	HeavyPercent  = 35
)

// DeltaForSpeed returns the transit time in ms for a vehicle at speedKPH to
// cover distanceMM, rounded up and at least 1. A zero speed maps to 1000ms.
func DeltaForSpeed(distanceMM, speedKPH uint32) uint32 {
	if speedKPH == 0 {
		return 1000
	}
	num := uint64(distanceMM) * 36
	den := uint64(speedKPH) * 10
	return uint32(max(1, (num+den-1)/den))
}

// RandRange returns a uniformly distributed value in [lo, hi].
func RandRange(r *rand.Rand, lo, hi uint32) uint32 {
	if hi <= lo {
		return lo
	}
	return lo + r.Uint32N(hi-lo+1)
}

// Vehicle describes one simulated vehicle.
type Vehicle struct {
	Axles    uint32
	SpeedKPH uint32
	DeltaMS  uint32
}

// Simulator drives a Pulser with synthetic traffic: light and heavy vehicles
// at speeds between 70% and 130% of their limit.
type Simulator struct {
	Pulser Pulser
	Limits radar.Limits
	Clock  timeutil.Clock
	Rand   *rand.Rand
}

// NextVehicle draws the next vehicle.
func (s *Simulator) NextVehicle() Vehicle {
	heavy := RandRange(s.Rand, 0, 99) < HeavyPercent
	v := Vehicle{Axles: 2}
	limit := s.Limits.LightLimitKPH
	if heavy {
		v.Axles = RandRange(s.Rand, 3, 4)
		limit = s.Limits.HeavyLimitKPH
	}
	v.SpeedKPH = RandRange(s.Rand, limit*70/100, limit*130/100)
	v.DeltaMS = DeltaForSpeed(s.Limits.DistanceMM, v.SpeedKPH)
	return v
}

// Drive fires the pulses for one vehicle: pulse A per axle, then pulse B
// after the transit time.
func (s *Simulator) Drive(ctx context.Context, v Vehicle) error {
	for i := uint32(0); i < v.Axles; i++ {
		s.Pulser.PulseA()
		gap := AxleGap + time.Duration(RandRange(s.Rand, 0, AxleGapJitter))*time.Millisecond
		if err := s.wait(ctx, gap); err != nil {
			return err
		}
	}
	if err := s.wait(ctx, time.Duration(v.DeltaMS)*time.Millisecond); err != nil {
		return err
	}
	s.Pulser.PulseB()
	return nil
}

// Run generates vehicles until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	for {
		if err := s.Drive(ctx, s.NextVehicle()); err != nil {
			return err
		}
		gap := CarGap + time.Duration(RandRange(s.Rand, 0, CarGapJitter))*time.Millisecond
		if err := s.wait(ctx, gap); err != nil {
			return err
		}
	}
}

func (s *Simulator) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Clock.After(d):
		return nil
	}
}
