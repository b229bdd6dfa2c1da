package transcode

import (
	"math"

	"github.com/vodarr/vodarr/internal/ffmpeg"
)

// bitrateScaleFactor expresses roughly how much bitrate a codec needs for
// the same quality, relative to h264.
func bitrateScaleFactor(codec string) float64 {
	switch codec {
	case "hevc", "vp9":
		return 0.6
	case "av1":
		return 0.5
	}
	return 1
}

// liftLowBitrate raises very low input bitrates so the transcode does not
// starve, then re-caps at the requested bitrate.
func liftLowBitrate(inputBitrate, requestedBitrate int) int {
	bitrate := inputBitrate
	if bitrate <= 2_000_000 {
		bitrate = int(float64(bitrate) * 2.5)
	} else if bitrate <= 3_000_000 {
		bitrate *= 2
	}
	return min(bitrate, requestedBitrate)
}

// scaleBitrate converts a bitrate between codec efficiencies, flooring the
// scale for low-bitrate inputs where codec overheads dominate.
func scaleBitrate(bitrate int, inputCodec, outputCodec string) int {
	scale := bitrateScaleFactor(outputCodec) / bitrateScaleFactor(inputCodec)
	switch {
	case bitrate <= 500_000:
		scale = math.Max(scale, 4)
	case bitrate <= 1_000_000:
		scale = math.Max(scale, 3)
	case bitrate <= 2_000_000:
		scale = math.Max(scale, 2.5)
	case bitrate <= 3_000_000:
		scale = math.Max(scale, 2)
	}
	return int(scale * float64(bitrate))
}

// targetBitrate resolves the session's video bitrate. The clamp to half of
// the integer range keeps bufsize (2x bitrate) finite.
func targetBitrate(settings *Settings, meta *ffmpeg.ProbeResult, video *ffmpeg.ProbeStream, color VideoColor, outputCodec string, copying bool) int {
	const sysMax = math.MaxInt / 2

	inputBitrate := sourceBitrate(meta)
	if copying {
		return min(inputBitrate, sysMax)
	}

	bitrate := inputBitrate
	if settings.MaxVideoBitrate > 0 {
		bitrate = settings.MaxVideoBitrate
	}

	if bitrate > 0 {
		upscaling := settings.MaxWidth > 0 && settings.MaxWidth > video.Width
		// A bitrate increase is only allowed when upscaling.
		if !upscaling {
			bitrate = liftLowBitrate(inputBitrate, bitrate)
		}

		bitrate = scaleBitrate(bitrate, video.CodecName, outputCodec)

		if settings.MaxVideoBitrate > 0 {
			bitrate = min(bitrate, settings.MaxVideoBitrate)
		}
	}

	return min(bitrate, sysMax)
}
