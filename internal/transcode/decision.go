package transcode

import (
	"fmt"
	"strconv"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/ffmpeg"
)

// TonemapPlan names the tonemap filter path for a session.
type TonemapPlan string

// Tonemap paths. Empty means no tonemapping.
const (
	TonemapNone  TonemapPlan = ""
	TonemapHDR10 TonemapPlan = "hdr10"
	TonemapHLG   TonemapPlan = "hlg"
	TonemapDoVi  TonemapPlan = "dovi"
)

// codecsToLib maps codec families to their software encoder libraries.
var codecsToLib = map[string]string{
	"h264": "libx264",
	"hevc": "libx265",
	"av1":  "libaom-av1",
	"vp9":  "libvpx-vp9",
	"opus": "libopus",
	"aac":  "libfdk_aac",
	"dts":  "dca",
	"flac": "flac",
	"mp3":  "libmp3lame",
}

// Decision is the negotiated outcome for one source and one capability
// descriptor.
type Decision struct {
	CanDirectPlay bool
	CanCopyVideo  bool
	CanCopyAudio  bool

	VideoColor VideoColor
	BitDepth   int

	// OutputVideoCodec and OutputAudioCodec are codec family names (h264,
	// aac, ...): the input codec when copying, the configured transcode
	// codec otherwise.
	OutputVideoCodec string
	OutputAudioCodec string

	// VideoEncoderLib is the encoder passed to -c:v ("copy", "libx264",
	// "h264_qsv", ...).
	VideoEncoderLib string

	OutputPixFmt  string
	TargetWidth   int
	TargetBitrate int
	Tonemap       TonemapPlan

	VideoStream *ffmpeg.ProbeStream
	AudioIndex  *StreamIndex
	AudioStream *ffmpeg.ProbeStream
}

// ForHLS returns a copy of the descriptor with the video codec forced to
// h264. HEVC inside HLS still breaks on some browsers, so copy and transcode
// are both pinned to h264 until the player matrix widens.
func (s *Settings) ForHLS() *Settings {
	clone := *s
	clone.TranscodeVideoCodec = "h264"
	clone.SupportedVideoCodecs = []string{"h264"}
	return &clone
}

// Negotiate inspects the probed source against the capability descriptor and
// resolves what the encoder has to do.
func Negotiate(cfg config.FFmpegConfig, settings *Settings, meta *ffmpeg.ProbeResult) (*Decision, error) {
	video := meta.VideoStream()
	if video == nil {
		return nil, ErrNoVideoStream
	}

	d := &Decision{
		VideoStream: video,
		VideoColor:  ClassifyVideoColor(video),
		BitDepth:    VideoColorBitDepth(video.PixFmt),
	}

	copyEligible := d.videoCopyEligible(cfg, settings, meta)
	d.CanCopyVideo = copyEligible && len(meta.Keyframes) > 0

	d.AudioIndex = StreamIndexByLang(meta, "audio", settings.AudioLang)
	if d.AudioIndex != nil {
		d.AudioStream = &meta.Streams[d.AudioIndex.Index]
		d.CanCopyAudio = canCopyAudio(settings, d.AudioStream)
	}

	d.CanDirectPlay = copyEligible && d.CanCopyAudio &&
		containerSupported(settings, meta) &&
		audioTrackDirectPlayable(settings, meta, d.AudioStream)

	d.resolveVideoOutput(cfg, settings, video)
	d.resolveAudioOutput(settings)
	d.TargetBitrate = targetBitrate(settings, meta, video,
		d.VideoColor, d.OutputVideoCodec, d.CanCopyVideo)

	return d, nil
}

// videoCopyEligible checks every copy requirement except keyframe
// availability; direct play uses the same clause set.
func (d *Decision) videoCopyEligible(cfg config.FFmpegConfig, settings *Settings, meta *ffmpeg.ProbeResult) bool {
	if settings.ForceTranscode {
		return false
	}
	if !contains(settings.SupportedVideoCodecs, d.VideoStream.CodecName) {
		return false
	}
	if d.BitDepth > settings.SupportedVideoColorBitDepth {
		return false
	}
	if d.VideoColor.IsHDR() && cfg.TonemapEnabled &&
		!contains(settings.SupportedHDRFormats, d.VideoColor.RangeType) {
		return false
	}
	if settings.MaxWidth > 0 && settings.MaxWidth < d.VideoStream.Width {
		return false
	}
	if settings.MaxVideoBitrate > 0 && settings.MaxVideoBitrate < sourceBitrate(meta) {
		return false
	}
	return true
}

func canCopyAudio(settings *Settings, stream *ffmpeg.ProbeStream) bool {
	if settings.MaxAudioChannels > 0 && settings.MaxAudioChannels < stream.Channels {
		return false
	}
	return contains(settings.SupportedAudioCodecs, stream.CodecName)
}

func containerSupported(settings *Settings, meta *ffmpeg.ProbeResult) bool {
	for _, name := range meta.FormatNames() {
		if contains(settings.SupportedVideoContainers, name) {
			return true
		}
	}
	return false
}

// audioTrackDirectPlayable reports whether a direct-playing client would end
// up on the chosen audio track: the track must be the unique default, or the
// client must be able to switch tracks itself.
func audioTrackDirectPlayable(settings *Settings, meta *ffmpeg.ProbeResult, chosen *ffmpeg.ProbeStream) bool {
	if chosen == nil {
		return false
	}
	if settings.ClientCanSwitchAudioTrack {
		return true
	}
	if chosen.Disposition.Default != 1 {
		return false
	}
	defaults := 0
	for _, s := range meta.AudioStreams() {
		if s.Disposition.Default == 1 {
			defaults++
		}
	}
	return defaults == 1
}

func (d *Decision) resolveVideoOutput(cfg config.FFmpegConfig, settings *Settings, video *ffmpeg.ProbeStream) {
	if d.CanCopyVideo {
		d.OutputVideoCodec = video.CodecName
		d.VideoEncoderLib = "copy"
	} else {
		d.OutputVideoCodec = settings.TranscodeVideoCodec
		if cfg.HWAccelEnabled {
			d.VideoEncoderLib = fmt.Sprintf("%s_%s", settings.TranscodeVideoCodec, cfg.HWAccel)
		} else if lib, ok := codecsToLib[settings.TranscodeVideoCodec]; ok {
			d.VideoEncoderLib = lib
		} else {
			d.VideoEncoderLib = settings.TranscodeVideoCodec
		}
	}

	d.TargetWidth = video.Width
	if settings.MaxWidth > 0 && settings.MaxWidth < video.Width {
		d.TargetWidth = settings.MaxWidth
	}

	if d.BitDepth <= settings.SupportedVideoColorBitDepth {
		d.OutputPixFmt = video.PixFmt
	} else if settings.SupportedVideoColorBitDepth == 8 {
		d.OutputPixFmt = "yuv420p"
	} else {
		d.OutputPixFmt = "yuv420p10le"
	}

	d.Tonemap = planTonemap(cfg, settings, d, video)
}

// planTonemap decides the tonemap path: only when the source is HDR the
// client cannot display, tonemapping is enabled, and the source is 10-bit.
// The Dolby Vision path needs an HEVC input and a QSV/VAAPI device.
func planTonemap(cfg config.FFmpegConfig, settings *Settings, d *Decision, video *ffmpeg.ProbeStream) TonemapPlan {
	if d.CanCopyVideo || !d.VideoColor.IsHDR() || !cfg.TonemapEnabled {
		return TonemapNone
	}
	if contains(settings.SupportedHDRFormats, d.VideoColor.RangeType) {
		return TonemapNone
	}
	if d.BitDepth != 10 {
		return TonemapNone
	}

	switch d.VideoColor.RangeType {
	case "dovi":
		if video.CodecName == "hevc" && (cfg.HWAccel == "qsv" || cfg.HWAccel == "vaapi") {
			return TonemapDoVi
		}
		return TonemapNone
	case "hdr10":
		return TonemapHDR10
	case "hlg":
		return TonemapHLG
	}
	return TonemapNone
}

func (d *Decision) resolveAudioOutput(settings *Settings) {
	if d.AudioStream == nil {
		return
	}
	// Copying audio under a transcoded video drifts out of sync, so audio
	// copy rides on video copy.
	if d.CanCopyVideo && d.CanCopyAudio {
		d.OutputAudioCodec = d.AudioStream.CodecName
	} else {
		d.OutputAudioCodec = settings.TranscodeAudioCodec
	}
}

func sourceBitrate(meta *ffmpeg.ProbeResult) int {
	br, err := strconv.Atoi(meta.Format.BitRate)
	if err != nil {
		return 0
	}
	return br
}
