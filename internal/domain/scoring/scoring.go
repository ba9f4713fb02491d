// Package scoring computes topic priority from frequency, value, gap, stress
// and coverage.
package scoring

import (
	"fmt"
	"math"

	"github.com/okian/examintel/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultCoverageOffset = 0.1
	defaultCoverageFloor  = 0.1
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithCoverageFloor sets the minimum denominator. Non-positive values are ignored.
func WithCoverageFloor(floor float64) Option {
	return func(s *Scorer) {
		if floor > 0 && !math.IsInf(floor, 0) {
			s.floor = floor
		}
	}
}

// WithCoverageOffset sets the amount added to coverage before clamping.
func WithCoverageOffset(offset float64) Option {
	return func(s *Scorer) {
		if offset >= 0 && !math.IsInf(offset, 0) {
			s.offset = offset
		}
	}
}

// Input holds the five scoring factors.
type Input struct {
	Frequency        float64
	AvgValue         float64
	UnderstandingGap float64
	StressFactor     float64
	Coverage         float64
}

// Scorer computes priorities. The zero value is not usable; use New.
type Scorer struct {
	offset float64
	floor  float64
}

// New creates a scorer with configuration options.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		offset: defaultCoverageOffset,
		floor:  defaultCoverageFloor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns (f*v*g*s) / max(c+offset, floor).
func (s *Scorer) Score(in Input) (float64, error) {
	for _, v := range [...]float64{in.Frequency, in.AvgValue, in.UnderstandingGap, in.StressFactor, in.Coverage} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("score factor %v: %w", v, model.ErrInvalidInput)
		}
	}
	numerator := in.Frequency * in.AvgValue * in.UnderstandingGap * in.StressFactor
	return numerator / math.Max(in.Coverage+s.offset, s.floor), nil
}

var defaultScorer = New()

// Score computes a priority with the default denominator clamp.
func Score(frequency, avgValue, understandingGap, stressFactor, coverage float64) (float64, error) {
	return defaultScorer.Score(Input{
		Frequency:        frequency,
		AvgValue:         avgValue,
		UnderstandingGap: understandingGap,
		StressFactor:     stressFactor,
		Coverage:         coverage,
	})
}
