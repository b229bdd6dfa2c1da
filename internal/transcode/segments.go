package transcode

import (
	"math"
)

// Segment target durations in seconds. Copy mode can only cut on existing
// keyframes, so it aims longer; transcode mode forces its own keyframes at a
// fixed cadence.
const (
	CopySegmentDuration      = 6
	TranscodeSegmentDuration = 3
)

// SegmentPlan is the ordered list of per-segment durations for an HLS media
// playlist. The sum of the plan equals the source duration. A session's plan
// is immutable for its lifetime; encoder restarts only move the start-segment
// cursor.
type SegmentPlan struct {
	Durations   []float64
	SegmentTime int
}

// NewCopyPlan builds a keyframe-aligned plan: segment boundaries sit exactly
// on keyframes because a copied bitstream cannot grow new IDR frames. The
// walk cuts at a keyframe as soon as the following keyframe reaches the
// running break time, so each segment ends at the last keyframe before a
// break, then a final segment runs up to the source duration.
func NewCopyPlan(keyframes []float64, duration float64) *SegmentPlan {
	plan := &SegmentPlan{SegmentTime: CopySegmentDuration}
	breakTime := float64(CopySegmentDuration)
	prev := 0.0
	for i := 0; i+1 < len(keyframes); i++ {
		if keyframes[i+1] >= breakTime && keyframes[i] > prev {
			plan.Durations = append(plan.Durations, keyframes[i]-prev)
			prev = keyframes[i]
			breakTime += CopySegmentDuration
		}
	}
	if duration > prev {
		plan.Durations = append(plan.Durations, duration-prev)
	}
	return plan
}

// NewTranscodePlan builds a uniform plan: full target-duration segments plus
// one remainder when the duration does not divide evenly.
func NewTranscodePlan(duration float64) *SegmentPlan {
	plan := &SegmentPlan{SegmentTime: TranscodeSegmentDuration}
	target := float64(TranscodeSegmentDuration)
	full := int(duration / target)
	for i := 0; i < full; i++ {
		plan.Durations = append(plan.Durations, target)
	}
	if remainder := duration - float64(full)*target; remainder > 0 {
		plan.Durations = append(plan.Durations, remainder)
	}
	return plan
}

// NewPlan picks the plan construction for the session: keyframe-aligned when
// copying, uniform when transcoding.
func NewPlan(copying bool, keyframes []float64, duration float64) *SegmentPlan {
	if copying {
		return NewCopyPlan(keyframes, duration)
	}
	return NewTranscodePlan(duration)
}

// Len returns the number of segments in the plan.
func (p *SegmentPlan) Len() int {
	return len(p.Durations)
}

// TargetDuration returns the playlist EXT-X-TARGETDURATION value: the
// ceiling of the longest segment, or the nominal segment time for an empty
// plan.
func (p *SegmentPlan) TargetDuration() int {
	if len(p.Durations) == 0 {
		return p.SegmentTime
	}
	longest := 0.0
	for _, d := range p.Durations {
		if d > longest {
			longest = d
		}
	}
	return int(math.Ceil(longest))
}

// StartSegmentFromStartTime returns the index of the segment containing t:
// the first segment whose cumulative end exceeds t. Zero for t <= 0; the
// last segment when t runs past the end of the plan.
func (p *SegmentPlan) StartSegmentFromStartTime(t float64) int {
	if t <= 0 || len(p.Durations) == 0 {
		return 0
	}
	end := 0.0
	for i, d := range p.Durations {
		end += d
		if end > t {
			return i
		}
	}
	return len(p.Durations) - 1
}

// StartTimeFromSegment returns the cumulative start time of segment i, 0 for
// i < 1 or out of range.
func (p *SegmentPlan) StartTimeFromSegment(i int) float64 {
	if i < 1 || i > len(p.Durations) {
		return 0
	}
	t := 0.0
	for _, d := range p.Durations[:i] {
		t += d
	}
	return t
}

// ClosestKeyframeTime returns the greatest keyframe at or before t, or t
// itself when no keyframes are known.
func ClosestKeyframeTime(keyframes []float64, t float64) float64 {
	if len(keyframes) == 0 {
		return t
	}
	corrected := 0.0
	for _, kf := range keyframes {
		if kf > t {
			break
		}
		corrected = kf
	}
	return corrected
}
