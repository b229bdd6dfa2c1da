package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vodarr/vodarr/internal/playid"
	"github.com/vodarr/vodarr/internal/transcode"
)

// copyChunkSize bounds a single write to the client during a range copy.
const copyChunkSize = 64 * 1024

// SourceHandler serves the original media file over byte-range HTTP for
// direct-play clients.
type SourceHandler struct {
	catalog *Catalog
	log     *slog.Logger
}

// NewSourceHandler creates a source download handler.
func NewSourceHandler(catalog *Catalog, log *slog.Logger) *SourceHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SourceHandler{catalog: catalog, log: log}
}

// Routes registers the source routes on the router.
func (h *SourceHandler) Routes(r chi.Router) {
	r.Get("/source", h.Download)
	r.Head("/source", h.Download)
}

// Download streams the source file, honoring a single bytes=start-end range.
func (h *SourceHandler) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sourceIndex, err := strconv.Atoi(q.Get("source_index"))
	if err != nil && q.Get("source_index") != "" {
		http.Error(w, "invalid source_index", http.StatusBadRequest)
		return
	}

	meta, err := h.catalog.Source(r.Context(), q.Get("play_id"), sourceIndex)
	if err != nil {
		switch {
		case errors.Is(err, playid.ErrInvalidToken):
			http.Error(w, "invalid play id", http.StatusBadRequest)
		case errors.Is(err, transcode.ErrNoMetadata):
			http.Error(w, "no metadata", http.StatusNotFound)
		default:
			h.log.Error("source lookup failed", slog.String("error", err.Error()))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	path := meta.Format.Filename
	f, err := os.Open(path)
	if err != nil {
		h.log.Error("opening source file", slog.String("path", path), slog.String("error", err.Error()))
		http.Error(w, "source file unavailable", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "source file unavailable", http.StatusNotFound)
		return
	}
	size := info.Size()

	filename := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := w.Header()
	header.Set("Content-Type", contentType)
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Encoding", "identity")
	header.Set("Cache-Control", "no-cache")
	header.Set("Access-Control-Expose-Headers",
		"content-type, accept-ranges, content-length, content-range, content-encoding")

	rangeHeader := r.Header.Get("Range")
	if r.Method == http.MethodHead || rangeHeader == "" {
		header.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		h.copyRange(w, f, 0, size-1)
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}

	header.Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.WriteHeader(http.StatusPartialContent)
	h.copyRange(w, f, start, end)
}

func (h *SourceHandler) copyRange(w io.Writer, f *os.File, start, end int64) {
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return
	}
	remaining := end - start + 1
	for remaining > 0 {
		chunk := int64(copyChunkSize)
		if remaining < chunk {
			chunk = remaining
		}
		n, err := io.CopyN(w, f, chunk)
		remaining -= n
		if err != nil {
			// Client went away or the file shrank under us.
			return
		}
	}
}

// parseRange interprets a single bytes=start-end range. A missing start with
// a present end is a suffix range naming the last end bytes of the file.
func parseRange(header string, size int64) (start, end int64, err error) {
	invalid := fmt.Errorf("invalid request range %q", header)

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, invalid
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok || strings.Contains(endStr, ",") {
		return 0, 0, invalid
	}

	if startStr == "" {
		// Suffix range: the last N bytes.
		n, convErr := strconv.ParseInt(endStr, 10, 64)
		if convErr != nil || n <= 0 {
			return 0, 0, invalid
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	}

	if start, err = strconv.ParseInt(startStr, 10, 64); err != nil {
		return 0, 0, invalid
	}
	end = size - 1
	if endStr != "" {
		if end, err = strconv.ParseInt(endStr, 10, 64); err != nil {
			return 0, 0, invalid
		}
	}

	if start > end || start < 0 || end > size-1 {
		return 0, 0, invalid
	}
	return start, end, nil
}
