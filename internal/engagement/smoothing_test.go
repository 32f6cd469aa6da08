package engagement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoSmoothingMapsFlagsDirectly(t *testing.T) {
	s := NewSmoother(SmoothingNone)
	require.Equal(t, []float64{0, 100, 100, 0}, s.Smooth([]bool{false, true, true, false}, 4))
	require.Empty(t, s.Smooth(nil, 1))
}

func TestKalmanHoldsSteadyState(t *testing.T) {
	s := NewSmoother(SmoothingKalman)
	require.Equal(t, []float64{100, 100, 100}, s.Smooth([]bool{true, true, true}, 3))
	require.Equal(t, []float64{0, 0, 0}, s.Smooth([]bool{false, false, false}, 3))
}

func TestKalmanRampsTowardStatusFlips(t *testing.T) {
	s := NewSmoother(SmoothingKalman)
	values := s.Smooth([]bool{false, false, true, true, true}, 5)
	require.Len(t, values, 5)
	require.Zero(t, values[0])
	require.Zero(t, values[1])
	// the estimate chases the flip over several buckets instead of jumping
	require.Greater(t, values[2], 0.0)
	require.Less(t, values[2], 100.0)
	require.Greater(t, values[3], values[2])
	require.Greater(t, values[4], values[3])
	require.Less(t, values[4], 100.0)
}

func TestKalmanEmptyFlags(t *testing.T) {
	require.Empty(t, NewSmoother(SmoothingKalman).Smooth(nil, 1))
}

func TestNewSmootherDefaultsToKalman(t *testing.T) {
	s := NewSmoother("")
	values := s.Smooth([]bool{false, true}, 2)
	require.Zero(t, values[0])
	require.Greater(t, values[1], 0.0)
	require.Less(t, values[1], 100.0)
}

func TestBuildSummary_DefaultSmoothingRampsTransitions(t *testing.T) {
	samples := make(SampleSet)
	samples.Add("p1", bucket(2), StatusEngaged, 1)

	summary := BuildSummary("m1", bucket(0), bucket(4), 1, 5,
		[]ParticipantInfo{{ID: "p1"}}, samples, nil)

	values := summary.Participants[0].Series
	require.Len(t, values, 5)
	require.Zero(t, values[0].Value)
	require.Greater(t, values[2].Value, 0.0)
	require.Less(t, values[2].Value, 100.0)
	require.Greater(t, values[3].Value, values[2].Value)
}
