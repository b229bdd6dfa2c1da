package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProbeResult contains the complete ffprobe output for one media file.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`

	// Keyframes holds video keyframe timestamps in seconds, ascending.
	// Populated by the scanner for containers without a usable index; empty
	// when extraction was skipped or not applicable.
	Keyframes []float64 `json:"keyframes,omitempty"`
}

// ProbeFormat contains container format information.
type ProbeFormat struct {
	Filename       string            `json:"filename"`
	NumStreams     int               `json:"nb_streams"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	StartTime      string            `json:"start_time"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags"`
}

// ProbeStream contains stream information.
type ProbeStream struct {
	Index          int               `json:"index"`
	CodecName      string            `json:"codec_name"`
	CodecLongName  string            `json:"codec_long_name"`
	Profile        string            `json:"profile"`
	CodecType      string            `json:"codec_type"` // video, audio, subtitle, data
	CodecTag       string            `json:"codec_tag_string"`
	Width          int               `json:"width,omitempty"`
	Height         int               `json:"height,omitempty"`
	PixFmt         string            `json:"pix_fmt,omitempty"`
	Level          int               `json:"level,omitempty"`
	ColorRange     string            `json:"color_range,omitempty"`
	ColorSpace     string            `json:"color_space,omitempty"`
	ColorTransfer  string            `json:"color_transfer,omitempty"`
	ColorPrimaries string            `json:"color_primaries,omitempty"`
	SampleFmt      string            `json:"sample_fmt,omitempty"`
	SampleRate     string            `json:"sample_rate,omitempty"`
	Channels       int               `json:"channels,omitempty"`
	ChannelLayout  string            `json:"channel_layout,omitempty"`
	RFrameRate     string            `json:"r_frame_rate,omitempty"`
	AvgFrameRate   string            `json:"avg_frame_rate,omitempty"`
	StartTime      string            `json:"start_time,omitempty"`
	Duration       string            `json:"duration,omitempty"`
	BitRate        string            `json:"bit_rate,omitempty"`
	Disposition    ProbeDisposition  `json:"disposition,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	SideDataList   []ProbeSideData   `json:"side_data_list,omitempty"`
}

// ProbeDisposition contains stream disposition flags.
type ProbeDisposition struct {
	Default         int `json:"default"`
	Dub             int `json:"dub"`
	Original        int `json:"original"`
	Comment         int `json:"comment"`
	Forced          int `json:"forced"`
	HearingImpaired int `json:"hearing_impaired"`
	VisualImpaired  int `json:"visual_impaired"`
	AttachedPic     int `json:"attached_pic"`
}

// ProbeSideData contains packet side data attached to a stream. Only the
// fields relevant to Dolby Vision detection are decoded.
type ProbeSideData struct {
	SideDataType              string `json:"side_data_type"`
	DVProfile                 int    `json:"dv_profile,omitempty"`
	DVLevel                   int    `json:"dv_level,omitempty"`
	RPUPresentFlag            int    `json:"rpu_present_flag,omitempty"`
	BLPresentFlag             int    `json:"bl_present_flag,omitempty"`
	DVBLSignalCompatibilityID int    `json:"dv_bl_signal_compatibility_id,omitempty"`
}

// VideoStream returns the first video stream, skipping attached pictures.
// Returns nil if the file has no video.
func (r *ProbeResult) VideoStream() *ProbeStream {
	for i := range r.Streams {
		s := &r.Streams[i]
		if s.CodecType == "video" && s.Disposition.AttachedPic == 0 {
			return s
		}
	}
	return nil
}

// AudioStreams returns all audio streams in container order.
func (r *ProbeResult) AudioStreams() []*ProbeStream {
	var streams []*ProbeStream
	for i := range r.Streams {
		if r.Streams[i].CodecType == "audio" {
			streams = append(streams, &r.Streams[i])
		}
	}
	return streams
}

// SubtitleStreams returns all subtitle streams in container order.
func (r *ProbeResult) SubtitleStreams() []*ProbeStream {
	var streams []*ProbeStream
	for i := range r.Streams {
		if r.Streams[i].CodecType == "subtitle" {
			streams = append(streams, &r.Streams[i])
		}
	}
	return streams
}

// DurationSeconds returns the container duration in seconds, or 0 if
// unknown.
func (r *ProbeResult) DurationSeconds() float64 {
	d, err := strconv.ParseFloat(r.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return d
}

// FormatNames returns the container format name list. ffprobe reports a
// comma separated set, e.g. "mov,mp4,m4a,3gp,3g2,mj2".
func (r *ProbeResult) FormatNames() []string {
	if r.Format.FormatName == "" {
		return nil
	}
	return strings.Split(r.Format.FormatName, ",")
}

// HasFormat reports whether name is one of the container format names.
func (r *ProbeResult) HasFormat(name string) bool {
	for _, f := range r.FormatNames() {
		if f == name {
			return true
		}
	}
	return false
}

// FrameRate returns the stream frame rate in frames per second, preferring
// the average rate. Returns 0 when the rate is unknown or malformed.
func (s *ProbeStream) FrameRate() float64 {
	if fr := parseFrameRate(s.AvgFrameRate); fr > 0 {
		return fr
	}
	return parseFrameRate(s.RFrameRate)
}

// Language returns the stream's language tag, or "" when untagged.
func (s *ProbeStream) Language() string {
	return s.Tags["language"]
}

// DoViSideData returns any Dolby Vision configuration records attached to
// the stream.
func (s *ProbeStream) DoViSideData() []ProbeSideData {
	var out []ProbeSideData
	for _, sd := range s.SideDataList {
		if strings.Contains(sd.SideDataType, "DOVI") {
			out = append(out, sd)
		}
	}
	return out
}

func parseFrameRate(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		f, err := strconv.ParseFloat(rate, 64)
		if err != nil {
			return 0
		}
		return f
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Prober handles ffprobe operations.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a new media prober.
func NewProber(ffprobePath string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

// WithTimeout sets the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

func probeArgs(path string) []string {
	return []string{
		"-show_streams",
		"-show_format",
		"-loglevel", "error",
		"-print_format", "json",
		path,
	}
}

// Probe inspects a media file and returns its format and stream details.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffprobePath, probeArgs(path)...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("probe timeout after %v", p.timeout)
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	return &result, nil
}
