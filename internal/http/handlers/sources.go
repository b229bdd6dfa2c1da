package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/playid"
	"github.com/vodarr/vodarr/internal/transcode"
)

// SourcesHandler lists the playable sources behind a play id.
type SourcesHandler struct {
	catalog *Catalog
}

// NewSourcesHandler creates a new sources handler.
func NewSourcesHandler(catalog *Catalog) *SourcesHandler {
	return &SourcesHandler{catalog: catalog}
}

// SourceStream describes one selectable audio or subtitle track.
type SourceStream struct {
	Title    string `json:"title,omitempty"`
	Language string `json:"language,omitempty"`
	Index    int    `json:"index"`
	Codec    string `json:"codec,omitempty"`
	Default  bool   `json:"default"`
	Forced   bool   `json:"forced"`
}

// Source describes one file for a play id, keyed by source index.
type Source struct {
	Width               int            `json:"width"`
	Height              int            `json:"height"`
	Resolution          string         `json:"resolution"`
	Codec               string         `json:"codec"`
	Duration            float64        `json:"duration"`
	Audio               []SourceStream `json:"audio"`
	Subtitles           []SourceStream `json:"subtitles"`
	Index               int            `json:"index"`
	VideoColorBitDepth  int            `json:"video_color_bit_depth"`
	VideoColorRange     string         `json:"video_color_range"`
	VideoColorRangeType string         `json:"video_color_range_type"`
}

// SourcesInput is the input for the sources endpoint.
type SourcesInput struct {
	PlayID string `query:"play_id" required:"true" doc:"Signed playback token"`
}

// SourcesOutput is the output for the sources endpoint.
type SourcesOutput struct {
	Body []Source
}

// Register registers the sources routes with the API.
func (h *SourcesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listSources",
		Method:      "GET",
		Path:        "/sources",
		Summary:     "List sources",
		Description: "Returns every file available for a play id with its resolution, codecs and selectable tracks",
		Tags:        []string{"Playback"},
	}, h.List)
}

// List returns the sources for a play id, sorted by width ascending.
func (h *SourcesHandler) List(ctx context.Context, input *SourcesInput) (*SourcesOutput, error) {
	metadata, err := h.catalog.Sources(ctx, input.PlayID)
	if err != nil {
		if errors.Is(err, playid.ErrInvalidToken) {
			return nil, huma.Error400BadRequest("invalid play id")
		}
		return nil, err
	}
	if len(metadata) == 0 {
		return nil, huma.Error404NotFound("no sources")
	}

	sources := make([]Source, 0, len(metadata))
	for i, meta := range metadata {
		source, err := describeSource(i, meta)
		if err != nil {
			return nil, huma.Error500InternalServerError("no video stream", err)
		}
		sources = append(sources, *source)
	}

	sort.SliceStable(sources, func(a, b int) bool {
		return sources[a].Width < sources[b].Width
	})
	return &SourcesOutput{Body: sources}, nil
}

func describeSource(index int, meta *ffmpeg.ProbeResult) (*Source, error) {
	video := meta.VideoStream()
	if video == nil {
		return nil, transcode.ErrNoVideoStream
	}
	color := transcode.ClassifyVideoColor(video)

	source := &Source{
		Width:               video.Width,
		Height:              video.Height,
		Resolution:          ResolutionText(video.Width, video.Height),
		Codec:               video.CodecName,
		Duration:            meta.DurationSeconds(),
		Audio:               []SourceStream{},
		Subtitles:           []SourceStream{},
		Index:               index,
		VideoColorBitDepth:  transcode.VideoColorBitDepth(video.PixFmt),
		VideoColorRange:     color.Range,
		VideoColorRangeType: color.RangeType,
	}

	for _, stream := range meta.Streams {
		title := stream.Tags["title"]
		lang := stream.Tags["language"]
		if title == "" && lang == "" {
			continue
		}
		s := SourceStream{
			Title:    title,
			Language: lang,
			Index:    stream.Index,
			Codec:    stream.CodecName,
			Default:  stream.Disposition.Default == 1,
			Forced:   stream.Disposition.Forced == 1,
		}
		switch stream.CodecType {
		case "audio":
			source.Audio = append(source.Audio, s)
		case "subtitle":
			// Bitmap subtitles cannot be rendered client-side.
			if stream.CodecName != "dvd_subtitle" && stream.CodecName != "hdmv_pgs_subtitle" {
				source.Subtitles = append(source.Subtitles, s)
			}
		}
	}
	return source, nil
}

// ResolutionText names a video resolution in the way players label quality
// rungs. The thresholds are lenient on width so slightly-cropped encodes
// still land on the expected rung.
func ResolutionText(width, height int) string {
	switch {
	case width <= 256 && height <= 144:
		return "144p"
	case width <= 426 && height <= 240:
		return "240p"
	case width <= 640 && height <= 360:
		return "360p"
	case width <= 682 && height <= 384:
		return "384p"
	case width <= 720 && height <= 404:
		return "404p"
	case width <= 854 && height <= 480:
		return "480p"
	case width <= 960 && height <= 544:
		return "540p"
	case width <= 1024 && height <= 576:
		return "576p"
	case width <= 1280 && height <= 962:
		return "720p"
	case width <= 1920 && height <= 1200:
		return "1080p"
	case width <= 2560 && height <= 1440:
		return "1440p"
	case width <= 4096 && height <= 3072:
		return "4K"
	case width <= 8192 && height <= 6144:
		return "8K"
	}
	return fmt.Sprintf("%dx%d", width, height)
}
