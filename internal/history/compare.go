package history

import (
	"time"

	"github.com/lumipallolabs/diskprobe/internal/engine"
)

// Comparison describes how a volume changed between two sessions. Fragment ids
// are per session, so only aggregate health is compared.
type Comparison struct {
	Previous *engine.Report
	Current  *engine.Report

	GoodDelta    int
	BadDelta     int
	SlowDelta    int
	FreeDelta    int64
	AverageDelta time.Duration
}

// Rate returns the share of planned fragments counted as n
func Rate(n, planned int) float64 {
	if planned == 0 {
		return 0
	}
	return float64(n) / float64(planned)
}

// Compare computes the change from prev to cur. A nil prev yields a comparison
// with only Current set.
func Compare(prev, cur *engine.Report) Comparison {
	c := Comparison{Previous: prev, Current: cur}
	if prev == nil || cur == nil {
		return c
	}
	c.GoodDelta = cur.Tally.Good - prev.Tally.Good
	c.BadDelta = cur.Tally.Bad - prev.Tally.Bad
	c.SlowDelta = cur.Tally.Slow - prev.Tally.Slow
	c.FreeDelta = int64(cur.FreeBytes) - int64(prev.FreeBytes)
	c.AverageDelta = cur.Average - prev.Average
	return c
}

// Degraded reports whether the share of bad or slow fragments grew
func (c Comparison) Degraded() bool {
	if c.Previous == nil || c.Current == nil {
		return false
	}
	p, n := c.Previous, c.Current
	return Rate(n.Tally.Bad, n.Planned) > Rate(p.Tally.Bad, p.Planned) ||
		Rate(n.Tally.Slow, n.Planned) > Rate(p.Tally.Slow, p.Planned)
}
