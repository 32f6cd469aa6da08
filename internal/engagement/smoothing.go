package engagement

// SmoothingAlgorithm selects how per-participant binary engagement
// flags become percentage series.
type SmoothingAlgorithm string

const (
	SmoothingNone   SmoothingAlgorithm = "none"
	SmoothingKalman SmoothingAlgorithm = "kalman"
)

// Smoother converts a participant's binary engagement flags into a
// percentage series of the same length. window is the series span in
// buckets; strategies may ignore it.
type Smoother interface {
	Smooth(flags []bool, window int) []float64
}

// NewSmoother returns the strategy for alg. Unknown or empty values
// fall back to the Kalman filter.
func NewSmoother(alg SmoothingAlgorithm) Smoother {
	if alg == SmoothingNone {
		return noSmoothing{}
	}
	return &kalmanSmoother{processVariance: 1e-5, measurementVariance: 1e-2}
}

type noSmoothing struct{}

func (noSmoothing) Smooth(flags []bool, _ int) []float64 {
	out := make([]float64, len(flags))
	for i, f := range flags {
		out[i] = flagValue(f)
	}
	return out
}

// kalmanSmoother runs a 1D Kalman filter over the flag series. The
// estimate chases each measurement with a gain derived from the
// running error estimate, so a status flip ramps over a few buckets
// instead of jumping between 0 and 100.
type kalmanSmoother struct {
	processVariance     float64
	measurementVariance float64
}

func (k *kalmanSmoother) Smooth(flags []bool, _ int) []float64 {
	if len(flags) == 0 {
		return nil
	}
	estimates := make([]float64, 0, len(flags))
	estimate := flagValue(flags[0])
	errEstimate := 1.0
	for _, f := range flags {
		measurement := flagValue(f)
		errEstimate += k.processVariance
		gain := errEstimate / (errEstimate + k.measurementVariance)
		estimate += gain * (measurement - estimate)
		errEstimate = (1 - gain) * errEstimate
		estimates = append(estimates, estimate)
	}
	return estimates
}

func flagValue(f bool) float64 {
	if f {
		return 100
	}
	return 0
}
