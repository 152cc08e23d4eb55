package sim

import (
	"context"
	"math"
	"time"

	"github.com/srg/uwbctl/internal/groutine"
	"github.com/srg/uwbctl/internal/uwb"
)

// Generator produces a synthetic walk around the local device: distance
// oscillates between MinDistance and MaxDistance while azimuth sweeps
// through ±AzimuthSpan. Every PartialEvery-th sample carries only one of the
// two values, to exercise partial updates.
type Generator struct {
	Interval     time.Duration
	MinDistance  float64
	MaxDistance  float64
	AzimuthSpan  float64
	Period       time.Duration
	PartialEvery int
	// DropoutEvery emits a peer-disconnected event every N samples; 0 disables.
	DropoutEvery int
}

// DefaultGenerator returns a generator that walks between 0.5m and 4m
// with a 10s period.
func DefaultGenerator(interval time.Duration) *Generator {
	return &Generator{
		Interval:     interval,
		MinDistance:  0.5,
		MaxDistance:  4.0,
		AzimuthSpan:  60,
		Period:       10 * time.Second,
		PartialEvery: 5,
	}
}

// Sample returns the n-th synthetic event for peer.
func (g *Generator) Sample(n int, peer uwb.Address) uwb.Event {
	if g.DropoutEvery > 0 && n > 0 && n%g.DropoutEvery == 0 {
		return uwb.PeerDisconnectedEvent(peer)
	}

	period := g.Period.Seconds()
	if period <= 0 {
		period = 1
	}
	t := float64(n) * g.Interval.Seconds()
	phase := 2 * math.Pi * t / period

	mid := (g.MinDistance + g.MaxDistance) / 2
	amp := (g.MaxDistance - g.MinDistance) / 2
	distance := float32(mid + amp*math.Sin(phase))
	azimuth := float32(g.AzimuthSpan * math.Sin(phase/2))

	var d, a *float32 = &distance, &azimuth
	if g.PartialEvery > 0 && n > 0 && n%g.PartialEvery == 0 {
		if (n/g.PartialEvery)%2 == 0 {
			a = nil
		} else {
			d = nil
		}
	}
	ev := uwb.PositionEvent(peer, d, a, nil)
	ev.Position.ElapsedNs = int64(t * float64(time.Second))
	return ev
}

// Drive injects samples into f every Interval until ctx is canceled or the
// feed ends. It runs on its own goroutine; the returned channel closes when
// it stops.
func (g *Generator) Drive(ctx context.Context, f *Feed) <-chan struct{} {
	return groutine.Go(ctx, "sim-generator-"+f.ID(), func(ctx context.Context) {
		ticker := time.NewTicker(g.Interval)
		defer ticker.Stop()

		peer := f.Peer()
		for n := 0; ; n++ {
			select {
			case <-ctx.Done():
				return
			case <-f.Done():
				return
			case <-ticker.C:
				if !f.Inject(g.Sample(n, peer)) {
					return
				}
			}
		}
	})
}
