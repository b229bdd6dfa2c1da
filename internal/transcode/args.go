package transcode

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/ffmpeg"
)

// Encoder families that honour -force_key_frames.
var forceKeyframeEncoders = map[string]bool{
	"libx264":    true,
	"libx265":    true,
	"h264_vaapi": true,
	"hevc_vaapi": true,
	"av1_vaapi":  true,
}

// Encoder families that ignore -force_key_frames and must be driven by GOP
// size instead.
var gopKeyframeEncoders = map[string]bool{
	"h264_qsv":   true,
	"h264_nvenc": true,
	"h264_amf":   true,
	"hevc_qsv":   true,
	"hevc_nvenc": true,
	"av1_qsv":    true,
	"av1_nvenc":  true,
	"av1_amf":    true,
	"libsvtav1":  true,
}

// EncoderJob carries everything needed to build and launch one encoder
// generation.
type EncoderJob struct {
	Settings *Settings
	Decision *Decision
	Meta     *ffmpeg.ProbeResult
	Plan     *SegmentPlan

	// StartSegment is the plan index the encoder's output numbering starts
	// at; StartTime is its aligned start offset in seconds.
	StartSegment int
	StartTime    float64

	ScratchDir string
}

// MediaPlaylistPath returns the encoder's live playlist inside the scratch
// directory.
func (j *EncoderJob) MediaPlaylistPath() string {
	return filepath.Join(j.ScratchDir, "media.m3u8")
}

// BuildEncoderArgs assembles the full ffmpeg argument vector for the job.
func BuildEncoderArgs(cfg config.FFmpegConfig, job *EncoderJob) []string {
	d := job.Decision
	copying := d.CanCopyVideo

	args := []string{"-analyzeduration", "200M"}

	if copying {
		args = append(args, "-fflags", "+genpts")
	}

	if cfg.HWAccelEnabled && !copying {
		switch cfg.HWAccel {
		case "qsv":
			args = append(args,
				"-init_hw_device", "vaapi=va:",
				"-init_hw_device", "qsv=qs@va",
				"-filter_hw_device", "qs",
				"-hwaccel", "vaapi",
				"-hwaccel_output_format", "vaapi",
			)
		case "vaapi":
			args = append(args,
				"-init_hw_device", fmt.Sprintf("vaapi=va:%s", cfg.HWAccelDevice),
				"-hwaccel", "vaapi",
				"-hwaccel_output_format", "vaapi",
			)
		}
	}

	if job.StartTime > 0 {
		// Millisecond quantization; the encoder seeks inconsistently on
		// higher precision values.
		args = append(args, "-ss", formatSeekTime(job.StartTime))
		if copying {
			args = append(args, "-noaccurate_seek")
		}
	}

	args = append(args, "-i", fmt.Sprintf("file:%s", job.Meta.Format.Filename))
	args = append(args,
		"-map_metadata", "-1",
		"-map_chapters", "-1",
		"-threads", "0",
		"-max_delay", "5000000",
		"-max_muxing_queue_size", "2048",
	)

	args = append(args, videoArgs(cfg, job)...)
	args = append(args, audioArgs(job)...)

	if !copying {
		args = append(args, keyframeArgs(job)...)
	}

	args = append(args,
		"-f", "hls",
		"-hls_playlist_type", "event",
		"-hls_segment_type", "fmp4",
		"-hls_time", strconv.Itoa(job.Plan.SegmentTime),
		"-hls_list_size", "0",
		"-start_number", strconv.Itoa(job.StartSegment),
		"-y",
	)
	if copying {
		if d.OutputVideoCodec == "hevc" {
			args = append(args, "-bsf:v", "hevc_mp4toannexb")
		} else {
			args = append(args, "-bsf:v", "h264_mp4toannexb")
		}
	}

	return append(args, job.MediaPlaylistPath())
}

func videoArgs(cfg config.FFmpegConfig, job *EncoderJob) []string {
	d := job.Decision
	args := []string{"-map", "0:v:0", "-c:v", d.VideoEncoderLib}

	if d.VideoEncoderLib == "copy" {
		args = append(args,
			"-start_at_zero",
			"-avoid_negative_ts", "disabled",
			"-copyts",
		)
		if d.OutputVideoCodec == "hevc" {
			if doviCodecTags[d.VideoStream.CodecTag] {
				args = append(args, "-tag:v", "dvh1", "-strict", "2")
			} else {
				args = append(args, "-tag:v", "hvc1")
			}
		}
		return args
	}

	if cfg.HWAccelEnabled {
		args = append(args, "-autoscale", "0")
		if cfg.HWAccelLowPower {
			args = append(args, "-low_power", "1")
		}
		if job.Settings.TranscodeVideoCodec == "hevc" {
			// The QSV HEVC path runs out of filter memory without this.
			args = append(args, "-async_depth", "1")
		}
	}

	if vf := videoFilter(cfg, job); len(vf) > 0 {
		args = append(args, "-vf", strings.Join(vf, ","))
	}

	args = append(args, qualityArgs(cfg, job)...)
	return args
}

func videoFilter(cfg config.FFmpegConfig, job *EncoderJob) []string {
	d := job.Decision
	settings := job.Settings
	width := d.TargetWidth
	pixFmt := d.OutputPixFmt
	tonemap := d.Tonemap != TonemapNone
	hdrPassthrough := d.VideoColor.IsHDR() &&
		contains(settings.SupportedHDRFormats, d.VideoColor.RangeType)

	var vf []string
	if tonemap || hdrPassthrough {
		vf = append(vf, "setparams=color_primaries=bt2020:color_trc=smpte2084:colorspace=bt2020nc")
	} else {
		vf = append(vf, "setparams=color_primaries=bt709:color_trc=bt709:colorspace=bt709")
	}

	if !cfg.HWAccelEnabled {
		if width > 0 && width != d.VideoStream.Width {
			vf = append(vf, fmt.Sprintf("scale=width=%d:height=-2", width))
		}
		vf = append(vf, fmt.Sprintf("format=%s", pixFmt))
		return vf
	}

	// The QSV H.264 encoder cannot take 10-bit input frames.
	if pixFmt == "yuv420p10le" && d.VideoEncoderLib == "h264_qsv" {
		pixFmt = "yuv420p"
	}

	format := ""
	if !tonemap {
		if pixFmt == "yuv420p10le" {
			format = "format=p010le"
		} else {
			format = "format=nv12"
		}
	}

	widthFilter := ""
	if width != d.VideoStream.Width {
		widthFilter = fmt.Sprintf("w=%d:h=-2", width)
	}
	if widthFilter != "" && format != "" {
		format = ":" + format
	}

	if widthFilter != "" || format != "" {
		if cfg.HWAccel == "qsv" {
			vf = append(vf, fmt.Sprintf("scale_vaapi=%s%s", widthFilter, format))
		} else {
			vf = append(vf, fmt.Sprintf("scale_%s=%s%s", cfg.HWAccel, widthFilter, format))
		}
		if !tonemap {
			vf = append(vf, fmt.Sprintf("hwmap=derive_device=%s,format=%s", cfg.HWAccel, cfg.HWAccel))
		}
	}

	if tonemap {
		vf = append(vf, tonemapFilter(cfg, d.Tonemap)...)
	}

	return vf
}

func tonemapFilter(cfg config.FFmpegConfig, plan TonemapPlan) []string {
	if cfg.HWAccel != "qsv" && cfg.HWAccel != "vaapi" {
		return nil
	}
	qsvExtra := ""
	if cfg.HWAccel == "qsv" {
		qsvExtra = ":extra_hw_frames=16"
	}

	// Only hdr10 and dovi map to a filter chain. HLG keeps its bt2020
	// metadata and passes through untouched.
	switch plan {
	case TonemapHDR10:
		return []string{
			"tonemap_vaapi=format=nv12:p=bt709:t=bt709:m=bt709",
			fmt.Sprintf("procamp_vaapi=b=0:c=1.2%s", qsvExtra),
			fmt.Sprintf("hwmap=derive_device=%s", cfg.HWAccel),
			fmt.Sprintf("format=%s", cfg.HWAccel),
		}
	case TonemapDoVi:
		return []string{
			"hwmap=derive_device=opencl",
			"tonemap_opencl=format=nv12:p=bt709:t=bt709:m=bt709:tonemap=bt2390:peak=100:desat=0",
			fmt.Sprintf("hwmap=derive_device=%s:reverse=1%s", cfg.HWAccel, qsvExtra),
			fmt.Sprintf("format=%s", cfg.HWAccel),
		}
	}
	return nil
}

func qualityArgs(cfg config.FFmpegConfig, job *EncoderJob) []string {
	d := job.Decision
	width := d.TargetWidth
	args := []string{"-preset", cfg.Preset}

	switch d.VideoEncoderLib {
	case "libx264":
		args = append(args, "-x264opts", "subme=0:me_range=4:rc_lookahead=10:me=hex:8x8dct=0:partitions=none")
		switch {
		case width >= 3840:
			args = append(args, "-crf", "18")
		case width >= 1920:
			args = append(args, "-crf", "19")
		default:
			args = append(args, "-crf", "26")
		}

	case "libx265":
		args = append(args, "-tag:v", "hvc1", "-x265-params:0", "no-info=1")
		// The second 3840 rung is unreachable; kept as found pending a
		// decision on whether it was meant to be 2560.
		switch {
		case width >= 3840:
			args = append(args, "-crf", "18")
		case width >= 3840:
			args = append(args, "-crf", "20")
		case width >= 1920:
			args = append(args, "-crf", "22")
		default:
			args = append(args, "-crf", "31")
		}

	case "libvpx-vp9":
		args = append(args, "-g", "24")
		switch {
		case width >= 3840:
			args = append(args, "-crf", "15")
		case width >= 2560:
			args = append(args, "-crf", "24")
		case width >= 1920:
			args = append(args, "-crf", "31")
		default:
			args = append(args, "-crf", "34")
		}

	case "h264_qsv":
		args = append(args, "-look_ahead", "0")

	case "hevc_qsv":
		args = append(args, "-tag:v", "hvc1")
	}

	bitrate := d.TargetBitrate
	switch d.VideoEncoderLib {
	case "libx264", "libx265", "libvpx-vp9":
		args = append(args,
			"-maxrate", strconv.Itoa(bitrate),
			"-bufsize", strconv.Itoa(bitrate*2),
		)
	default:
		args = append(args,
			"-b:v", strconv.Itoa(bitrate),
			"-maxrate", strconv.Itoa(bitrate),
			"-bufsize", strconv.Itoa(bitrate*2),
		)
	}

	return args
}

func audioArgs(job *EncoderJob) []string {
	d := job.Decision
	if d.AudioIndex == nil || d.AudioStream == nil {
		return nil
	}

	args := []string{"-map", fmt.Sprintf("0:%d", d.AudioIndex.Index)}

	if d.CanCopyVideo && d.CanCopyAudio {
		return append(args, "-c:a", "copy")
	}

	lib, ok := codecsToLib[d.OutputAudioCodec]
	if !ok {
		lib = d.OutputAudioCodec
	}
	args = append(args, "-c:a", lib)

	channels := d.AudioStream.Channels
	bitrate, err := strconv.Atoi(d.AudioStream.BitRate)
	if err != nil || bitrate <= 0 {
		bitrate = channels * 128_000
	}
	if job.Settings.MaxAudioChannels > 0 && job.Settings.MaxAudioChannels < channels {
		channels = job.Settings.MaxAudioChannels
		bitrate = channels * 128_000
	}
	args = append(args,
		"-ac", strconv.Itoa(channels),
		"-b:a", strconv.Itoa(bitrate),
	)
	return args
}

func keyframeArgs(job *EncoderJob) []string {
	d := job.Decision
	segmentTime := job.Plan.SegmentTime

	forceArgs := []string{
		"-force_key_frames:0", fmt.Sprintf("expr:gte(t,n_forced*%d)", segmentTime),
	}

	var gopArgs []string
	if fps := d.VideoStream.FrameRate(); fps > 0 {
		gop := strconv.Itoa(int(math.Ceil(float64(segmentTime) * fps)))
		gopArgs = []string{
			"-g:v:0", gop,
			"-keyint_min:v:0", gop,
		}
	}

	var args []string
	switch {
	case gopKeyframeEncoders[d.VideoEncoderLib]:
		args = append(args, gopArgs...)
	case forceKeyframeEncoders[d.VideoEncoderLib]:
		args = append(args, forceArgs...)
		// Keep libx264's scene-cut pass from breaking the forced cadence.
		if d.VideoEncoderLib == "libx264" {
			args = append(args, "-sc_threshold:v:0", "0")
		}
	default:
		args = append(args, forceArgs...)
		args = append(args, gopArgs...)
	}

	// The AMD HEVC VAAPI encoder's global header produces fMP4 iOS cannot
	// play.
	if d.VideoEncoderLib == "hevc_vaapi" {
		args = append(args, "-flags:v", "+global_header")
	}

	return args
}

func formatSeekTime(t float64) string {
	return strconv.FormatFloat(math.Floor(t*1000)/1000, 'f', -1, 64)
}
