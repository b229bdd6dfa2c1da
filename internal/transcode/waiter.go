package transcode

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"time"
)

// segmentNumberRe extracts segment numbers from playlist lines. Readiness is
// derived from the live playlist text rather than from file existence: the
// encoder references a segment in the playlist only once the file is
// complete on disk.
var segmentNumberRe = regexp.MustCompile(`(\d+)\.m4s`)

// FirstLastTranscodedSegment parses the live playlist and returns the first
// and last segment number written so far. found is false when the playlist
// does not exist yet or references no segments. Partial lines at the tail
// are tolerated; a half-written reference simply does not match.
func FirstLastTranscodedSegment(playlistPath string) (first, last int, found bool, err error) {
	data, err := os.ReadFile(playlistPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}

	matches := segmentNumberRe.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		return 0, 0, false, nil
	}

	for i, m := range matches {
		n, convErr := strconv.Atoi(string(m[1]))
		if convErr != nil {
			continue
		}
		if i == 0 {
			first = n
		}
		last = n
		found = true
	}
	return first, last, found, nil
}

// SegmentReady reports whether segment n is referenced by the live playlist.
func SegmentReady(playlistPath string, n int) bool {
	first, last, found, err := FirstLastTranscodedSegment(playlistPath)
	if err != nil || !found {
		return false
	}
	return first <= n && n <= last
}

// WaitForSegment polls the live playlist until segment n is ready. Returns
// ErrSegmentWaitTimeout when the window closes first.
func WaitForSegment(ctx context.Context, playlistPath string, n int, poll, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if SegmentReady(playlistPath, n) {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrSegmentWaitTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitForMedia polls until the live playlist references at least one
// segment. Used for encoder startup readiness; returns ErrStartupTimeout
// when the encoder produced nothing inside the window.
func WaitForMedia(ctx context.Context, playlistPath string, timeout time.Duration) error {
	const poll = 500 * time.Millisecond
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if _, _, found, _ := FirstLastTranscodedSegment(playlistPath); found {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrStartupTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
