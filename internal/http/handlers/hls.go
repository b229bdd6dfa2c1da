package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/playid"
	"github.com/vodarr/vodarr/internal/transcode"
)

const playlistContentType = "application/x-mpegURL"

// StreamHandler serves the negotiation endpoint and the HLS artifacts. These
// routes bypass huma: playlists and segments are not JSON, and the segment
// route may hold the connection for the full readiness wait.
type StreamHandler struct {
	catalog *Catalog
	engine  *transcode.Engine
	ffcfg   config.FFmpegConfig
	log     *slog.Logger
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(catalog *Catalog, engine *transcode.Engine, ffcfg config.FFmpegConfig, log *slog.Logger) *StreamHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StreamHandler{catalog: catalog, engine: engine, ffcfg: ffcfg, log: log}
}

// Routes registers the streaming routes on the router.
func (h *StreamHandler) Routes(r chi.Router) {
	r.Get("/request-media", h.RequestMedia)
	r.Get("/hls/main.m3u8", h.MainPlaylist)
	r.Get("/hls/media.m3u8", h.MediaPlaylist)
	r.Get("/hls/media{segment}.m4s", h.Segment)
	r.Get("/hls/init.mp4", h.InitSegment)
}

// RequestMediaResponse is the negotiation result handed to players.
type RequestMediaResponse struct {
	DirectPlayURL string `json:"direct_play_url"`
	CanDirectPlay bool   `json:"can_direct_play"`
	HLSURL        string `json:"hls_url"`
}

// RequestMedia negotiates a capability descriptor against one source and
// returns the playback URLs.
func (h *StreamHandler) RequestMedia(w http.ResponseWriter, r *http.Request) {
	settings, meta, ok := h.resolve(w, r)
	if !ok {
		return
	}

	// Direct play is judged against the raw descriptor; the HLS h264 pin
	// only applies once the client falls back to segmented playback.
	decision, err := transcode.Negotiate(h.ffcfg, settings, meta)
	if err != nil {
		h.writeError(w, err)
		return
	}

	direct := url.Values{}
	direct.Set("play_id", settings.PlayID)
	direct.Set("source_index", strconv.Itoa(settings.SourceIndex))

	resp := RequestMediaResponse{
		DirectPlayURL: "/source?" + direct.Encode(),
		CanDirectPlay: decision.CanDirectPlay,
		HLSURL:        "/hls/main.m3u8?" + settings.Query().Encode(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// MainPlaylist serves the master playlist.
func (h *StreamHandler) MainPlaylist(w http.ResponseWriter, r *http.Request) {
	settings, meta, ok := h.resolve(w, r)
	if !ok {
		return
	}

	playlist, err := h.engine.MainPlaylist(settings, meta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writePlaylist(w, playlist)
}

// MediaPlaylist serves the media playlist, cold-starting a session when
// none is live.
func (h *StreamHandler) MediaPlaylist(w http.ResponseWriter, r *http.Request) {
	settings, meta, ok := h.resolve(w, r)
	if !ok {
		return
	}

	playlist, err := h.engine.MediaPlaylist(r.Context(), settings, meta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writePlaylist(w, playlist)
}

// Segment serves segment N, waiting for or restarting the encoder as
// needed.
func (h *StreamHandler) Segment(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "segment"))
	if err != nil || n < 0 {
		http.Error(w, "invalid segment number", http.StatusBadRequest)
		return
	}

	settings, meta, ok := h.resolve(w, r)
	if !ok {
		return
	}

	path, err := h.engine.Segment(r.Context(), settings, meta, n)
	if err != nil {
		if errors.Is(err, transcode.ErrSegmentWaitTimeout) || errors.Is(err, transcode.ErrStartupTimeout) {
			http.Error(w, "no media", http.StatusNotFound)
			return
		}
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "video/iso.segment")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

// InitSegment serves the session's fMP4 init segment.
func (h *StreamHandler) InitSegment(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}

	path, err := h.engine.InitSegment(session)
	if err != nil {
		http.Error(w, "no init file", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

// resolve parses the capability descriptor and loads the source metadata,
// writing the error response itself on failure.
func (h *StreamHandler) resolve(w http.ResponseWriter, r *http.Request) (*transcode.Settings, *ffmpeg.ProbeResult, bool) {
	settings, err := transcode.ParseSettings(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return nil, nil, false
	}

	meta, err := h.catalog.Source(r.Context(), settings.PlayID, settings.SourceIndex)
	if err != nil {
		h.writeError(w, err)
		return nil, nil, false
	}
	return settings, meta, true
}

func (h *StreamHandler) writePlaylist(w http.ResponseWriter, playlist string) {
	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(playlist))
}

// writeError maps engine and catalog errors to status codes.
func (h *StreamHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transcode.ErrInvalidSettings), errors.Is(err, playid.ErrInvalidToken):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, transcode.ErrNoMetadata):
		http.Error(w, "no metadata", http.StatusNotFound)
	case errors.Is(err, transcode.ErrUnknownSession):
		http.Error(w, "unknown session", http.StatusNotFound)
	default:
		h.log.Error("stream request failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
