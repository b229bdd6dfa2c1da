package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Keyframe prefix of a real 3486.59 s source.
var testKeyframes = []float64{
	0, 6.715, 10.761, 14.473, 18.527, 22.105, 26.318, 30.361,
	34.493, 38.705, 42.835, 47.089, 51.105, 55.355, 59.311,
}

const testDuration = 3486.59

func TestCopyPlanBoundaries(t *testing.T) {
	plan := NewCopyPlan(testKeyframes, testDuration)

	require.GreaterOrEqual(t, plan.Len(), 4)
	assert.InDelta(t, 6.715, plan.Durations[0], 1e-9)
	assert.InDelta(t, 4.046, plan.Durations[1], 1e-9)
	assert.InDelta(t, 3.712, plan.Durations[2], 1e-9)

	// Every boundary is a keyframe and the plan sums to the duration.
	cumulative := 0.0
	keyframes := map[float64]bool{}
	for _, kf := range testKeyframes {
		keyframes[kf] = true
	}
	for i, d := range plan.Durations {
		cumulative += d
		if i < plan.Len()-1 {
			assert.True(t, keyframes[roundMs(cumulative)],
				"segment %d boundary %v is not a keyframe", i, cumulative)
		}
	}
	assert.InDelta(t, testDuration, cumulative, 0.001)
}

func roundMs(t float64) float64 {
	return float64(int(t*1000+0.5)) / 1000
}

func TestCopyPlanNoKeyframes(t *testing.T) {
	plan := NewCopyPlan(nil, 100)
	require.Equal(t, 1, plan.Len())
	assert.InDelta(t, 100.0, plan.Durations[0], 1e-9)
}

func TestTranscodePlanUniform(t *testing.T) {
	plan := NewTranscodePlan(10)
	require.Equal(t, []float64{3, 3, 3, 1}, plan.Durations)

	plan = NewTranscodePlan(9)
	require.Equal(t, []float64{3, 3, 3}, plan.Durations)

	for i, d := range plan.Durations {
		if i < plan.Len()-1 {
			assert.InDelta(t, float64(TranscodeSegmentDuration), d, 1e-9)
		} else {
			assert.Greater(t, d, 0.0)
			assert.LessOrEqual(t, d, float64(TranscodeSegmentDuration))
		}
	}
}

func TestStartSegmentStartTimeInverse(t *testing.T) {
	plan := NewCopyPlan(testKeyframes, testDuration)

	assert.InDelta(t, 14.473, plan.StartTimeFromSegment(3), 1e-9)
	assert.Equal(t, 3, plan.StartSegmentFromStartTime(15))

	assert.Equal(t, 0, plan.StartSegmentFromStartTime(0))
	assert.Equal(t, 0, plan.StartSegmentFromStartTime(-5))
	assert.InDelta(t, 0, plan.StartTimeFromSegment(0), 1e-9)
	assert.InDelta(t, 0, plan.StartTimeFromSegment(plan.Len()+1), 1e-9)

	for _, tt := range []float64{0, 3, 6.715, 14.472, 14.473, 40, 59} {
		seg := plan.StartSegmentFromStartTime(tt)
		start := plan.StartTimeFromSegment(seg)
		assert.LessOrEqual(t, start, tt, "t=%v", tt)
		if seg+1 < plan.Len() {
			assert.Greater(t, plan.StartTimeFromSegment(seg+1), tt, "t=%v", tt)
		}
	}
}

func TestClosestKeyframeTime(t *testing.T) {
	assert.InDelta(t, 10.761, ClosestKeyframeTime(testKeyframes, 12), 1e-9)
	assert.InDelta(t, 10.761, ClosestKeyframeTime(testKeyframes, 10.761), 1e-9)
	assert.InDelta(t, 0, ClosestKeyframeTime(testKeyframes, 3), 1e-9)
	// No keyframes: the requested time passes through.
	assert.InDelta(t, 42.5, ClosestKeyframeTime(nil, 42.5), 1e-9)
}

func TestTargetDuration(t *testing.T) {
	empty := &SegmentPlan{SegmentTime: CopySegmentDuration}
	assert.Equal(t, 6, empty.TargetDuration())

	plan := NewCopyPlan(testKeyframes, testDuration)
	max := 0.0
	for _, d := range plan.Durations {
		if d > max {
			max = d
		}
	}
	assert.GreaterOrEqual(t, float64(plan.TargetDuration()), max)
	assert.Less(t, float64(plan.TargetDuration())-max, 1.0)
}
