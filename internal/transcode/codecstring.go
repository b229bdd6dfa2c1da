package transcode

import (
	"fmt"
	"strings"

	"github.com/vodarr/vodarr/internal/ffmpeg"
)

// avc1Profiles maps H.264 profile names to the profile_idc + constraint
// bytes of an RFC 6381 avc1 codec string.
var avc1Profiles = map[string]string{
	"high":                 "6400",
	"high 10":              "6e00",
	"main":                 "4d40",
	"baseline":             "42e0",
	"constrained baseline": "42e0",
}

// VideoCodecString renders the RFC 6381 codec identifier for the output
// video stream. The stream carries the source profile and level; it is nil
// when the track is transcoded, which falls back to conservative defaults.
func VideoCodecString(codec string, stream *ffmpeg.ProbeStream) string {
	profile, level := "", 0
	if stream != nil {
		profile = stream.Profile
		level = stream.Level
	}

	switch codec {
	case "h264":
		idc := avc1Profiles[strings.ToLower(profile)]
		if idc == "" {
			idc = "4d40"
		}
		if level <= 0 {
			level = 41
		}
		return fmt.Sprintf("avc1.%s%02x", idc, level)
	case "hevc":
		generalProfile := "1"
		if strings.EqualFold(profile, "main 10") {
			generalProfile = "2"
		}
		if level <= 0 {
			level = 120
		}
		return fmt.Sprintf("hvc1.%s.4.L%d.B0", generalProfile, level)
	}
	return codec
}

// AudioCodecString renders the RFC 6381 codec identifier for the output
// audio stream.
func AudioCodecString(codec string, stream *ffmpeg.ProbeStream) string {
	switch codec {
	case "aac":
		if stream != nil && strings.Contains(strings.ToLower(stream.Profile), "he") {
			return "mp4a.40.5"
		}
		return "mp4a.40.2"
	case "ac3":
		return "mp4a.a5"
	case "eac3":
		return "mp4a.a6"
	case "opus":
		return "Opus"
	case "flac":
		return "fLaC"
	case "mp3":
		return "mp4a.40.34"
	}
	return codec
}
