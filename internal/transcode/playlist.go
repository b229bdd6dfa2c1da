package transcode

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderMainPlaylist renders the HLS master playlist: a single variant whose
// URL carries the full capability descriptor.
func RenderMainPlaylist(d *Decision, settings *Settings) string {
	videoRange := "SDR"
	if d.CanCopyVideo {
		videoRange = d.VideoColor.HLSVideoRange()
	}

	// Transcoded tracks carry none of the source profile.
	videoStream := d.VideoStream
	if !d.CanCopyVideo {
		videoStream = nil
	}
	audioStream := d.AudioStream
	if !(d.CanCopyVideo && d.CanCopyAudio) {
		audioStream = nil
	}
	codecs := VideoCodecString(d.OutputVideoCodec, videoStream) + "," +
		AudioCodecString(d.OutputAudioCodec, audioStream)

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")
	fmt.Fprintf(&b,
		"#EXT-X-STREAM-INF:BANDWIDTH=%d,AVERAGE-BANDWIDTH=%d,VIDEO-RANGE=%s,CODECS=\"%s\"\n",
		d.TargetBitrate, d.TargetBitrate, videoRange, codecs,
	)
	fmt.Fprintf(&b, "media.m3u8?%s\n", settings.Query().Encode())
	return b.String()
}

// RenderMediaPlaylist renders the HLS media playlist from a segment plan.
// The playlist is synthesized from the plan, never tailed from the encoder's
// live output, so the response is immediate.
func RenderMediaPlaylist(plan *SegmentPlan, settings *Settings) string {
	params := settings.Query().Encode()

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", plan.TargetDuration())
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	fmt.Fprintf(&b, "#EXT-X-MAP:URI=\"/hls/init.mp4?%s\"\n", params)
	for i, d := range plan.Durations {
		fmt.Fprintf(&b, "#EXTINF:%s,\n", strconv.FormatFloat(d, 'f', -1, 64))
		fmt.Fprintf(&b, "/hls/media%d.m4s?%s\n", i, params)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}
