package renderer

import "time"

// Continuous sample accumulation.
const ContinuousSampling = -1

type Options struct {
	// Number of primary render passes per accumulation window or
	// ContinuousSampling.
	NumSamples int

	// Maximum time between two secondary readbacks.
	ReadbackInterval time.Duration

	// Delay before a secondary retries a failed render pass.
	RetryDelay time.Duration
}

// DefaultOptions returns continuous sampling with a 1s readback interval.
func DefaultOptions() Options {
	return Options{
		NumSamples:       ContinuousSampling,
		ReadbackInterval: time.Second,
		RetryDelay:       100 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ReadbackInterval <= 0 {
		o.ReadbackInterval = def.ReadbackInterval
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = def.RetryDelay
	}
	if o.NumSamples < ContinuousSampling {
		o.NumSamples = ContinuousSampling
	}
	return o
}
