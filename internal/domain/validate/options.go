// Package validate judges observations against date, value, and outlier
// policies before they reach reconciliation.
package validate

import "math"

// Options control per-record checks and the batch-level outlier pass.
type Options struct {
	// AllowMissing accepts the missing-value sentinel instead of
	// rejecting it. Off by default.
	AllowMissing bool

	// MinValue and MaxValue bound accepted numeric values, inclusive.
	MinValue float64
	MaxValue float64

	// OutlierStdDevs enables the batch-level outlier pass when > 0:
	// values more than this many population standard deviations from
	// the batch mean are flagged.
	OutlierStdDevs float64
}

// Option applies a configuration option to Options.
type Option func(*Options)

// WithAllowMissing accepts the missing-value sentinel.
func WithAllowMissing() Option {
	return func(o *Options) {
		o.AllowMissing = true
	}
}

// WithValueRange sets inclusive numeric bounds.
func WithValueRange(minValue, maxValue float64) Option {
	return func(o *Options) {
		if minValue <= maxValue {
			o.MinValue = minValue
			o.MaxValue = maxValue
		}
	}
}

// WithOutlierStdDevs enables outlier detection at the given threshold.
func WithOutlierStdDevs(stdDevs float64) Option {
	return func(o *Options) {
		if stdDevs > 0 {
			o.OutlierStdDevs = stdDevs
		}
	}
}

// NewOptions builds Options with unbounded defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		MinValue: math.Inf(-1),
		MaxValue: math.Inf(1),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
