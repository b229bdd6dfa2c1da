// Package transcode implements the transcode session engine: capability
// negotiation, HLS segment planning and playlist rendering, encoder argument
// construction, session lifecycle, and segment readiness tracking.
package transcode

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Format is the requested output container mode.
type Format string

// Supported output formats. Anything else is rejected.
const (
	FormatHLS   Format = "hls"
	FormatHLSJS Format = "hls.js"
)

// Settings is the capability descriptor: the query-string bundle from which
// every per-session encoding decision is derived.
type Settings struct {
	PlayID      string
	Session     string
	SourceIndex int
	Format      Format

	TranscodeVideoCodec string
	TranscodeAudioCodec string

	SupportedVideoCodecs     []string
	SupportedAudioCodecs     []string
	SupportedVideoContainers []string
	SupportedHDRFormats      []string

	SupportedVideoColorBitDepth int

	StartTime    float64
	StartSegment *int

	AudioLang                 string
	MaxAudioChannels          int
	MaxWidth                  int
	MaxVideoBitrate           int
	ClientCanSwitchAudioTrack bool
	ForceTranscode            bool
}

// ParseSettings decodes a capability descriptor from query parameters.
// List-valued parameters accept comma-separated and repeated forms, mixed
// freely.
func ParseSettings(values url.Values) (*Settings, error) {
	s := &Settings{
		PlayID:                      values.Get("play_id"),
		Session:                     values.Get("session"),
		Format:                      Format(values.Get("format")),
		TranscodeVideoCodec:         values.Get("transcode_video_codec"),
		TranscodeAudioCodec:         values.Get("transcode_audio_codec"),
		AudioLang:                   values.Get("audio_lang"),
		SupportedVideoCodecs:        parseList(values["supported_video_codecs"]),
		SupportedAudioCodecs:        parseList(values["supported_audio_codecs"]),
		SupportedVideoContainers:    parseList(values["supported_video_containers"]),
		SupportedHDRFormats:         parseList(values["supported_hdr_formats"]),
		SupportedVideoColorBitDepth: 10,
	}

	if s.PlayID == "" {
		return nil, fmt.Errorf("%w: play_id is required", ErrInvalidSettings)
	}
	if s.Session == "" {
		return nil, fmt.Errorf("%w: session is required", ErrInvalidSettings)
	}

	switch s.Format {
	case FormatHLS, FormatHLSJS:
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidSettings, s.Format)
	}

	if s.TranscodeVideoCodec == "" {
		s.TranscodeVideoCodec = "h264"
	}
	switch s.TranscodeVideoCodec {
	case "h264", "hevc", "vp9", "av1":
	default:
		return nil, fmt.Errorf("%w: unsupported transcode_video_codec %q", ErrInvalidSettings, s.TranscodeVideoCodec)
	}

	if s.TranscodeAudioCodec == "" {
		s.TranscodeAudioCodec = "aac"
	}
	switch s.TranscodeAudioCodec {
	case "aac", "opus", "dts", "flac", "mp3":
	default:
		return nil, fmt.Errorf("%w: unsupported transcode_audio_codec %q", ErrInvalidSettings, s.TranscodeAudioCodec)
	}

	if len(s.SupportedVideoContainers) == 0 {
		s.SupportedVideoContainers = []string{"mp4"}
	}

	for _, hdr := range s.SupportedHDRFormats {
		switch hdr {
		case "hdr10", "hlg", "dovi":
		default:
			return nil, fmt.Errorf("%w: unsupported hdr format %q", ErrInvalidSettings, hdr)
		}
	}

	var err error
	if s.SourceIndex, err = parseInt(values.Get("source_index"), 0); err != nil {
		return nil, fmt.Errorf("%w: source_index: %v", ErrInvalidSettings, err)
	}
	if s.SourceIndex < 0 {
		return nil, fmt.Errorf("%w: source_index must not be negative", ErrInvalidSettings)
	}

	if v := values.Get("supported_video_color_bit_depth"); v != "" {
		if s.SupportedVideoColorBitDepth, err = parseInt(v, 10); err != nil {
			return nil, fmt.Errorf("%w: supported_video_color_bit_depth: %v", ErrInvalidSettings, err)
		}
		if s.SupportedVideoColorBitDepth < 8 {
			return nil, fmt.Errorf("%w: supported_video_color_bit_depth must be >= 8", ErrInvalidSettings)
		}
	}

	if v := values.Get("start_time"); v != "" {
		if s.StartTime, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("%w: start_time: %v", ErrInvalidSettings, err)
		}
	}
	if v := values.Get("start_segment"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: start_segment: %v", ErrInvalidSettings, err)
		}
		s.StartSegment = &n
	}

	if s.MaxAudioChannels, err = parseInt(values.Get("max_audio_channels"), 0); err != nil {
		return nil, fmt.Errorf("%w: max_audio_channels: %v", ErrInvalidSettings, err)
	}
	if s.MaxWidth, err = parseInt(values.Get("max_width"), 0); err != nil {
		return nil, fmt.Errorf("%w: max_width: %v", ErrInvalidSettings, err)
	}
	if s.MaxVideoBitrate, err = parseInt(values.Get("max_video_bitrate"), 0); err != nil {
		return nil, fmt.Errorf("%w: max_video_bitrate: %v", ErrInvalidSettings, err)
	}

	s.ClientCanSwitchAudioTrack = parseBool(values.Get("client_can_switch_audio_track"))
	s.ForceTranscode = parseBool(values.Get("force_transcode"))

	return s, nil
}

// Query re-encodes the descriptor as query parameters. Used to build segment
// and init URLs that carry the full capability context; ParseSettings on the
// result yields an equivalent descriptor.
func (s *Settings) Query() url.Values {
	values := url.Values{}
	values.Set("play_id", s.PlayID)
	values.Set("session", s.Session)
	values.Set("source_index", strconv.Itoa(s.SourceIndex))
	values.Set("format", string(s.Format))
	values.Set("transcode_video_codec", s.TranscodeVideoCodec)
	values.Set("transcode_audio_codec", s.TranscodeAudioCodec)

	setList := func(key string, list []string) {
		if len(list) > 0 {
			values.Set(key, strings.Join(list, ","))
		}
	}
	setList("supported_video_codecs", s.SupportedVideoCodecs)
	setList("supported_audio_codecs", s.SupportedAudioCodecs)
	setList("supported_video_containers", s.SupportedVideoContainers)
	setList("supported_hdr_formats", s.SupportedHDRFormats)

	values.Set("supported_video_color_bit_depth", strconv.Itoa(s.SupportedVideoColorBitDepth))

	if s.StartTime > 0 {
		values.Set("start_time", strconv.FormatFloat(s.StartTime, 'f', -1, 64))
	}
	if s.StartSegment != nil {
		values.Set("start_segment", strconv.Itoa(*s.StartSegment))
	}
	if s.AudioLang != "" {
		values.Set("audio_lang", s.AudioLang)
	}
	if s.MaxAudioChannels > 0 {
		values.Set("max_audio_channels", strconv.Itoa(s.MaxAudioChannels))
	}
	if s.MaxWidth > 0 {
		values.Set("max_width", strconv.Itoa(s.MaxWidth))
	}
	if s.MaxVideoBitrate > 0 {
		values.Set("max_video_bitrate", strconv.Itoa(s.MaxVideoBitrate))
	}
	if s.ClientCanSwitchAudioTrack {
		values.Set("client_can_switch_audio_track", "true")
	}
	if s.ForceTranscode {
		values.Set("force_transcode", "true")
	}
	return values
}

func contains(list []string, needle string) bool {
	for _, v := range list {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}

func parseList(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
