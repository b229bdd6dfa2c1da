package transcode

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoCodecString(t *testing.T) {
	meta := sdrSource()
	video := meta.VideoStream()
	assert.Equal(t, "avc1.640029", VideoCodecString("h264", video))

	hdr := hdrSource().VideoStream()
	assert.Equal(t, "hvc1.2.4.L150.B0", VideoCodecString("hevc", hdr))

	// Transcoded tracks have no source stream to draw from.
	assert.Equal(t, "avc1.4d4029", VideoCodecString("h264", nil))
	assert.Equal(t, "hvc1.1.4.L120.B0", VideoCodecString("hevc", nil))
	assert.Equal(t, "vp9", VideoCodecString("vp9", nil))
}

func TestAudioCodecString(t *testing.T) {
	assert.Equal(t, "mp4a.40.2", AudioCodecString("aac", nil))
	assert.Equal(t, "mp4a.a6", AudioCodecString("eac3", nil))
	assert.Equal(t, "mp4a.a5", AudioCodecString("ac3", nil))
	assert.Equal(t, "Opus", AudioCodecString("opus", nil))
	assert.Equal(t, "fLaC", AudioCodecString("flac", nil))
	assert.Equal(t, "mp4a.40.34", AudioCodecString("mp3", nil))
}

func TestRenderMainPlaylistCopy(t *testing.T) {
	settings := settingsFromQuery(t, url.Values{
		"supported_video_codecs":     {"h264"},
		"supported_audio_codecs":     {"eac3"},
		"supported_video_containers": {"matroska"},
	})
	d, err := Negotiate(testFFmpegConfig(), settings, sdrSource())
	require.NoError(t, err)
	require.True(t, d.CanCopyVideo)

	out := RenderMainPlaylist(d, settings)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "#EXTM3U", lines[0])
	assert.Equal(t, "#EXT-X-VERSION:7", lines[1])
	assert.Contains(t, lines[2], "#EXT-X-STREAM-INF:BANDWIDTH=12000000,")
	assert.Contains(t, lines[2], "AVERAGE-BANDWIDTH=12000000,")
	assert.Contains(t, lines[2], "VIDEO-RANGE=SDR,")
	assert.Contains(t, lines[2], `CODECS="avc1.640029,mp4a.a6"`)

	require.True(t, strings.HasPrefix(lines[3], "media.m3u8?"))
	q, err := url.ParseQuery(strings.TrimPrefix(lines[3], "media.m3u8?"))
	require.NoError(t, err)
	assert.Equal(t, "abc", q.Get("session"))
	assert.Equal(t, "token", q.Get("play_id"))
}

func TestRenderMainPlaylistHDRCopy(t *testing.T) {
	settings := settingsFromQuery(t, url.Values{
		"supported_video_codecs":     {"hevc"},
		"supported_audio_codecs":     {"eac3"},
		"supported_hdr_formats":      {"hdr10"},
		"supported_video_containers": {"matroska"},
	})
	d, err := Negotiate(testFFmpegConfig(), settings, hdrSource())
	require.NoError(t, err)
	require.True(t, d.CanCopyVideo)

	out := RenderMainPlaylist(d, settings)
	assert.Contains(t, out, "VIDEO-RANGE=PQ,")
	assert.Contains(t, out, `CODECS="hvc1.2.4.L150.B0,mp4a.a6"`)
}

func TestRenderMainPlaylistTranscode(t *testing.T) {
	settings := settingsFromQuery(t, url.Values{
		"supported_video_codecs": {"h264"},
		"supported_audio_codecs": {"aac"},
	})
	d, err := Negotiate(testFFmpegConfig(), settings, hdrSource())
	require.NoError(t, err)
	require.False(t, d.CanCopyVideo)

	// An HDR source transcoded for an SDR client advertises SDR and the
	// default codec profiles.
	out := RenderMainPlaylist(d, settings)
	assert.Contains(t, out, "VIDEO-RANGE=SDR,")
	assert.Contains(t, out, `CODECS="avc1.4d4029,mp4a.40.2"`)
}

func TestRenderMediaPlaylist(t *testing.T) {
	settings := settingsFromQuery(t, nil)
	plan := &SegmentPlan{
		Durations:   []float64{6.715, 4.046, 3.712},
		SegmentTime: CopySegmentDuration,
	}

	out := RenderMediaPlaylist(plan, settings)
	params := settings.Query().Encode()
	want := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:7",
		"#EXT-X-PLAYLIST-TYPE:VOD",
		"#EXT-X-TARGETDURATION:7",
		"#EXT-X-MEDIA-SEQUENCE:0",
		`#EXT-X-MAP:URI="/hls/init.mp4?` + params + `"`,
		"#EXTINF:6.715,",
		"/hls/media0.m4s?" + params,
		"#EXTINF:4.046,",
		"/hls/media1.m4s?" + params,
		"#EXTINF:3.712,",
		"/hls/media2.m4s?" + params,
		"#EXT-X-ENDLIST",
	}, "\n") + "\n"
	assert.Equal(t, want, out)
}

func TestRenderMediaPlaylistEmptyPlan(t *testing.T) {
	settings := settingsFromQuery(t, nil)
	plan := &SegmentPlan{SegmentTime: CopySegmentDuration}

	out := RenderMediaPlaylist(plan, settings)
	assert.Contains(t, out, "#EXT-X-TARGETDURATION:6\n")
	assert.NotContains(t, out, "#EXTINF")
	assert.Contains(t, out, "#EXT-X-ENDLIST\n")
}
