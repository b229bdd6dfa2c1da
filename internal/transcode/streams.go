package transcode

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/vodarr/vodarr/internal/ffmpeg"
)

// StreamIndex locates a stream both by its absolute position in the
// container and by its position within streams of the same kind. The group
// index is what HLS track selection and subtitle extraction address.
type StreamIndex struct {
	Index      int
	GroupIndex int
}

// StreamIndexByLang selects a stream of the given kind by language request.
// The request has the form "lang" or "lang:absolute_index". An absolute
// index is honoured only when it names a stream of the right kind whose
// language or title matches; otherwise the first stream whose language or
// title equals the request wins. With no request the first default-flagged
// stream is chosen, then the first stream of the kind. Returns nil when the
// file has no stream of the kind.
func StreamIndexByLang(result *ffmpeg.ProbeResult, codecType, lang string) *StreamIndex {
	req := lang
	wantIndex := -1
	if l, idx, ok := strings.Cut(lang, ":"); ok {
		if n, err := strconv.Atoi(idx); err == nil {
			req = l
			wantIndex = n
		}
	}

	groupIndex := -1
	var first, firstDefault, langMatch, indexMatch *StreamIndex
	for i := range result.Streams {
		stream := &result.Streams[i]
		if stream.CodecType != codecType {
			continue
		}
		groupIndex++
		si := &StreamIndex{Index: i, GroupIndex: groupIndex}

		if first == nil {
			first = si
		}
		if firstDefault == nil && stream.Disposition.Default == 1 {
			firstDefault = si
		}
		if req == "" {
			continue
		}

		tag := stream.Tags["language"]
		if tag == "" {
			tag = stream.Tags["title"]
		}
		if tag == "" || !langMatches(tag, req) {
			continue
		}
		if stream.Index == wantIndex && indexMatch == nil {
			indexMatch = si
		}
		if langMatch == nil {
			langMatch = si
		}
	}

	if req == "" {
		if firstDefault != nil {
			return firstDefault
		}
		return first
	}
	if indexMatch != nil {
		return indexMatch
	}
	if langMatch != nil {
		return langMatch
	}
	return first
}

// langMatches compares a stream tag against a requested language. Exact
// case-insensitive equality wins; otherwise both sides are parsed as BCP 47
// tags so two-letter and three-letter forms of the same language match.
func langMatches(tag, req string) bool {
	if strings.EqualFold(tag, req) {
		return true
	}
	t1, err1 := language.Parse(tag)
	t2, err2 := language.Parse(req)
	if err1 != nil || err2 != nil {
		return false
	}
	b1, _ := t1.Base()
	b2, _ := t2.Base()
	return b1 == b2
}
