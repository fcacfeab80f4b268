package engine

import "time"

// PolicyConfig tunes the adaptive slow-write detector. All values are in multiples
// of Unit. The fold ceiling and the running average are independent knobs.
type PolicyConfig struct {
	Unit           time.Duration
	InitialAverage float64
	FoldCeiling    float64
	Headroom       float64
}

// DefaultPolicy is one-second units, seeded at 20, folding writes under 15, with 3 of
// headroom.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		Unit:           time.Second,
		InitialAverage: 20,
		FoldCeiling:    15,
		Headroom:       3,
	}
}

func (c PolicyConfig) units(v float64) time.Duration {
	return time.Duration(v * float64(c.Unit))
}

// TimeoutPolicy keeps a damped running average of write durations and flags writes
// slower than it. It lives for one session.
type TimeoutPolicy struct {
	cfg     PolicyConfig
	average time.Duration
}

// NewTimeoutPolicy seeds the average at cfg.InitialAverage.
func NewTimeoutPolicy(cfg PolicyConfig) *TimeoutPolicy {
	if cfg.Unit <= 0 {
		cfg.Unit = time.Second
	}
	return &TimeoutPolicy{cfg: cfg, average: cfg.units(cfg.InitialAverage)}
}

// Observe classifies dt against the current average, then folds dt into the average
// when it is under the ceiling: aver = (aver + dt) / 2 + headroom.
func (p *TimeoutPolicy) Observe(dt time.Duration) (slow bool) {
	slow = dt > p.average
	if dt < p.cfg.units(p.cfg.FoldCeiling) {
		p.average = (p.average+dt)/2 + p.cfg.units(p.cfg.Headroom)
	}
	return slow
}

// Average returns the current threshold.
func (p *TimeoutPolicy) Average() time.Duration {
	return p.average
}
