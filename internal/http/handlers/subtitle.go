package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/playid"
	"github.com/vodarr/vodarr/internal/transcode"
)

// SubtitleHandler extracts embedded subtitle tracks as WebVTT on demand.
type SubtitleHandler struct {
	catalog    *Catalog
	ffmpegPath string
	log        *slog.Logger
}

// NewSubtitleHandler creates a subtitle extraction handler.
func NewSubtitleHandler(catalog *Catalog, ffmpegPath string, log *slog.Logger) *SubtitleHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SubtitleHandler{catalog: catalog, ffmpegPath: ffmpegPath, log: log}
}

// Routes registers the subtitle routes on the router.
func (h *SubtitleHandler) Routes(r chi.Router) {
	r.Get("/subtitle-file", h.Download)
}

// Download extracts one subtitle stream as WebVTT. The lang parameter is
// "{language}:{stream index}" where the index is the absolute stream index
// reported by the sources endpoint. offset shifts timestamps by seeking the
// extraction start.
func (h *SubtitleHandler) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sourceIndex := 0
	if v := q.Get("source_index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid source_index", http.StatusBadRequest)
			return
		}
		sourceIndex = n
	}

	lang := q.Get("lang")
	_, indexStr, ok := strings.Cut(lang, ":")
	if !ok {
		http.Error(w, "lang must be language:index", http.StatusBadRequest)
		return
	}
	streamIndex, err := strconv.Atoi(indexStr)
	if err != nil {
		http.Error(w, "lang must be language:index", http.StatusBadRequest)
		return
	}

	offset := 0.0
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.ParseFloat(v, 64); err != nil {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
	}

	meta, err := h.catalog.Source(r.Context(), q.Get("play_id"), sourceIndex)
	if err != nil {
		switch {
		case errors.Is(err, playid.ErrInvalidToken):
			http.Error(w, "invalid play id", http.StatusBadRequest)
		case errors.Is(err, transcode.ErrNoMetadata):
			http.Error(w, "no metadata", http.StatusNotFound)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	groupIndex := subtitleGroupIndex(meta, streamIndex)
	if groupIndex < 0 {
		http.Error(w, "subtitle stream not found", http.StatusNotFound)
		return
	}

	vtt, err := ffmpeg.ExtractSubtitleVTT(r.Context(), h.ffmpegPath, meta.Format.Filename, groupIndex, offset)
	if err != nil {
		h.log.Error("subtitle extraction failed",
			slog.String("path", meta.Format.Filename),
			slog.Int("stream", streamIndex),
			slog.String("error", err.Error()),
		)
		http.Error(w, "unable to retrieve subtitle file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/vtt")
	w.Write(vtt)
}

// subtitleGroupIndex maps an absolute stream index to the stream's position
// among the file's subtitle streams, which is how the encoder addresses it.
func subtitleGroupIndex(meta *ffmpeg.ProbeResult, streamIndex int) int {
	for i, s := range meta.SubtitleStreams() {
		if s.Index == streamIndex {
			return i
		}
	}
	return -1
}
