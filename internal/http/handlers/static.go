package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// MountStatic serves the transcode scratch tree under /files/ and the
// thumbnail tree under /thumbnails/. Both are read-only; directory listings
// are refused.
func MountStatic(r chi.Router, transcodeDir, thumbnailsDir string) {
	r.Handle("/files/*", http.StripPrefix("/files/", noCache(noListing(http.FileServer(http.Dir(transcodeDir))))))
	if thumbnailsDir != "" {
		r.Handle("/thumbnails/*", http.StripPrefix("/thumbnails/", noListing(http.FileServer(http.Dir(thumbnailsDir)))))
	}
}

// noCache disables client caching. The live media.m3u8 is rewritten by the
// encoder faster than browsers revalidate, so conditional requests would
// serve a stale playlist.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
