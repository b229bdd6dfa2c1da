package transcode

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiftLowBitrate(t *testing.T) {
	assert.Equal(t, 3_750_000, liftLowBitrate(1_500_000, 10_000_000))
	assert.Equal(t, 5_000_000, liftLowBitrate(2_500_000, 10_000_000))
	// The lift never exceeds the requested bitrate.
	assert.Equal(t, 2_000_000, liftLowBitrate(1_500_000, 2_000_000))
	// High inputs pass through.
	assert.Equal(t, 8_000_000, liftLowBitrate(8_000_000, 10_000_000))
}

func TestScaleBitrate(t *testing.T) {
	// h264 to hevc needs roughly 60% of the bitrate.
	assert.Equal(t, 4_800_000, scaleBitrate(8_000_000, "h264", "hevc"))
	assert.Equal(t, 13_333_333, scaleBitrate(8_000_000, "hevc", "h264"))
	assert.Equal(t, 8_000_000, scaleBitrate(8_000_000, "h264", "h264"))

	// Low-bitrate floors override the codec factor.
	assert.Equal(t, 1_600_000, scaleBitrate(400_000, "h264", "hevc"))
	assert.Equal(t, 3_000_000, scaleBitrate(1_000_000, "h264", "h264"))
	assert.Equal(t, 5_000_000, scaleBitrate(2_000_000, "h264", "h264"))
	assert.Equal(t, 6_000_000, scaleBitrate(3_000_000, "h264", "h264"))
}

func TestTargetBitrateCopying(t *testing.T) {
	meta := sdrSource()
	video := meta.VideoStream()
	settings := settingsFromQuery(t, nil)

	got := targetBitrate(settings, meta, video, VideoColor{}, "h264", true)
	assert.Equal(t, 12_000_000, got)
}

func TestTargetBitrateCappedByRequest(t *testing.T) {
	meta := sdrSource()
	video := meta.VideoStream()
	settings := settingsFromQuery(t, url.Values{
		"max_video_bitrate": {"4000000"},
	})

	got := targetBitrate(settings, meta, video, VideoColor{}, "h264", false)
	assert.Equal(t, 4_000_000, got)
}

func TestTargetBitrateLiftsStarvedInput(t *testing.T) {
	meta := sdrSource()
	meta.Format.BitRate = "1000000"
	video := meta.VideoStream()
	settings := settingsFromQuery(t, nil)

	got := targetBitrate(settings, meta, video, VideoColor{}, "h264", false)
	assert.Equal(t, 3_000_000, got)
}

func TestTargetBitrateUnknownInput(t *testing.T) {
	meta := sdrSource()
	meta.Format.BitRate = ""
	video := meta.VideoStream()
	settings := settingsFromQuery(t, nil)

	got := targetBitrate(settings, meta, video, VideoColor{}, "h264", false)
	require.Equal(t, 0, got)
}
