package transcode

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseQuery() url.Values {
	return url.Values{
		"play_id": {"token"},
		"session": {"abc"},
		"format":  {"hls"},
	}
}

func TestParseSettingsDefaults(t *testing.T) {
	s, err := ParseSettings(baseQuery())
	require.NoError(t, err)

	assert.Equal(t, "h264", s.TranscodeVideoCodec)
	assert.Equal(t, "aac", s.TranscodeAudioCodec)
	assert.Equal(t, []string{"mp4"}, s.SupportedVideoContainers)
	assert.Equal(t, 10, s.SupportedVideoColorBitDepth)
	assert.Zero(t, s.StartTime)
	assert.Nil(t, s.StartSegment)
	assert.False(t, s.ForceTranscode)
}

func TestParseSettingsListForms(t *testing.T) {
	q := baseQuery()
	// Mixed comma-separated and repeated parameters.
	q["supported_video_codecs"] = []string{"h264,hevc", "av1"}
	q.Set("supported_audio_codecs", "aac, eac3 ,opus")

	s, err := ParseSettings(q)
	require.NoError(t, err)
	assert.Equal(t, []string{"h264", "hevc", "av1"}, s.SupportedVideoCodecs)
	assert.Equal(t, []string{"aac", "eac3", "opus"}, s.SupportedAudioCodecs)
}

func TestParseSettingsRejectsUnsupportedFormat(t *testing.T) {
	for _, format := range []string{"pipe", "dash", "", "mp4"} {
		q := baseQuery()
		q.Set("format", format)
		_, err := ParseSettings(q)
		assert.ErrorIs(t, err, ErrInvalidSettings, "format=%q", format)
	}
}

func TestParseSettingsRequiredFields(t *testing.T) {
	q := baseQuery()
	q.Del("play_id")
	_, err := ParseSettings(q)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	q = baseQuery()
	q.Del("session")
	_, err = ParseSettings(q)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestParseSettingsValidation(t *testing.T) {
	q := baseQuery()
	q.Set("supported_video_color_bit_depth", "6")
	_, err := ParseSettings(q)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	q = baseQuery()
	q.Set("supported_hdr_formats", "hdr10,hdr11")
	_, err = ParseSettings(q)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	q = baseQuery()
	q.Set("start_time", "abc")
	_, err = ParseSettings(q)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestSettingsQueryRoundTrip(t *testing.T) {
	q := baseQuery()
	q.Set("source_index", "2")
	q.Set("supported_video_codecs", "h264,hevc")
	q.Set("supported_audio_codecs", "aac")
	q.Set("supported_hdr_formats", "hdr10,dovi")
	q.Set("start_time", "42.5")
	q.Set("start_segment", "7")
	q.Set("audio_lang", "dan")
	q.Set("max_audio_channels", "2")
	q.Set("max_width", "1920")
	q.Set("max_video_bitrate", "4000000")
	q.Set("client_can_switch_audio_track", "true")
	q.Set("force_transcode", "true")

	s, err := ParseSettings(q)
	require.NoError(t, err)

	decoded, err := ParseSettings(s.Query())
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestForHLSPinsH264(t *testing.T) {
	q := baseQuery()
	q.Set("transcode_video_codec", "hevc")
	q.Set("supported_video_codecs", "hevc,av1")
	s, err := ParseSettings(q)
	require.NoError(t, err)

	hls := s.ForHLS()
	assert.Equal(t, "h264", hls.TranscodeVideoCodec)
	assert.Equal(t, []string{"h264"}, hls.SupportedVideoCodecs)
	// The original descriptor is untouched.
	assert.Equal(t, "hevc", s.TranscodeVideoCodec)
}
