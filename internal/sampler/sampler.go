package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// #region constants

// Neutral is substituted for any scalar the OS could not report.
const Neutral = 0.5

// DefaultInterval is the CPU measurement window.
const DefaultInterval = 200 * time.Millisecond

// grace bounds the whole Sample call beyond the measurement window.
const grace = 300 * time.Millisecond

// #endregion constants

// #region types

// ResourceSample is one reading of system pressure, both scalars in [0, 1].
type ResourceSample struct {
	CPU      float64 `json:"cpu"`
	Memory   float64 `json:"memory"`
	Degraded bool    `json:"degraded"` // true when a scalar was replaced by Neutral
}

// Sampler reads the current resource pressure. Implementations never fail;
// unreadable values come back as Neutral.
type Sampler interface {
	Sample(ctx context.Context) ResourceSample
}

type probeFunc func(ctx context.Context) (float64, error)

// #endregion types

// #region system

// System samples the host through gopsutil.
type System struct {
	interval time.Duration
	cpu      probeFunc
	mem      probeFunc
	logger   *zap.Logger
}

// NewSystem returns a host sampler. A non-positive interval uses DefaultInterval.
func NewSystem(interval time.Duration, logger *zap.Logger) *System {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &System{interval: interval, logger: logger}
	s.cpu = func(ctx context.Context) (float64, error) {
		pcts, err := cpu.PercentWithContext(ctx, s.interval, false)
		if err != nil {
			return 0, err
		}
		if len(pcts) == 0 {
			return 0, errors.New("no cpu readings")
		}
		return pcts[0], nil
	}
	s.mem = func(ctx context.Context) (float64, error) {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, err
		}
		return vm.UsedPercent, nil
	}
	return s
}

// Sample queries CPU and memory concurrently. The call returns within
// interval+grace even if the OS hangs; failed or late readings are Neutral.
func (s *System) Sample(ctx context.Context) ResourceSample {
	ctx, cancel := context.WithTimeout(ctx, s.interval+grace)
	defer cancel()

	out := ResourceSample{CPU: Neutral, Memory: Neutral}
	var g errgroup.Group
	g.Go(func() error {
		v, err := probe(ctx, s.cpu)
		if err != nil {
			return fmt.Errorf("cpu: %w", err)
		}
		out.CPU = FromPercent(v)
		return nil
	})
	g.Go(func() error {
		v, err := probe(ctx, s.mem)
		if err != nil {
			return fmt.Errorf("memory: %w", err)
		}
		out.Memory = FromPercent(v)
		return nil
	})
	if err := g.Wait(); err != nil {
		out.Degraded = true
		s.logger.Warn("resource sampling degraded, using neutral values",
			zap.Error(err),
			zap.Float64("cpu", out.CPU),
			zap.Float64("memory", out.Memory),
		)
	}
	return out
}

// probe runs fn but gives up when ctx expires, so a stuck OS query cannot
// hold the caller past its deadline.
func probe(ctx context.Context, fn probeFunc) (float64, error) {
	type reading struct {
		value float64
		err   error
	}
	ch := make(chan reading, 1)
	go func() {
		v, err := fn(ctx)
		ch <- reading{value: v, err: err}
	}()
	select {
	case r := <-ch:
		if r.err == nil && math.IsNaN(r.value) {
			return 0, errors.New("reading is NaN")
		}
		return r.value, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// #endregion system

// #region static

// Static always returns the same sample. Used for reproducible review and tests.
type Static struct {
	sample ResourceSample
}

// NewStatic clamps cpu and memory into [0, 1].
func NewStatic(cpu, memory float64) Static {
	return Static{sample: ResourceSample{CPU: Clamp(cpu), Memory: Clamp(memory)}}
}

// Sample returns the fixed sample.
func (s Static) Sample(context.Context) ResourceSample {
	return s.sample
}

// #endregion static

// #region helpers

// FromPercent converts a 0-100 utilization into [0, 1].
func FromPercent(pct float64) float64 {
	return Clamp(pct / 100)
}

// Clamp restricts v to [0, 1]. NaN maps to Neutral.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return Neutral
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// #endregion helpers
