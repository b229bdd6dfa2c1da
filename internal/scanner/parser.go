// Package scanner indexes library directories into the catalog database:
// filename parsing, id resolution, ffprobe metadata capture and change
// detection, plus the filesystem watcher for incremental updates.
package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParsedEpisode is the outcome of parsing an episode filename. Number is the
// absolute episode number when the filename carries one; Season/Episode and
// AirDate are alternative identifications that need a resolver.
type ParsedEpisode struct {
	Title   string
	Season  int
	Episode int
	Number  int
	AirDate time.Time
}

// LookupValue returns the resolver cache key for the season/episode or air
// date form, or "" when the filename carried an absolute number.
func (p *ParsedEpisode) LookupValue() string {
	if p.Season > 0 && p.Episode > 0 {
		return strconv.Itoa(p.Season) + "-" + strconv.Itoa(p.Episode)
	}
	if !p.AirDate.IsZero() {
		return p.AirDate.Format("2006-01-02")
	}
	return ""
}

// Episode filename forms, tried in order; the first match wins. Derived from
// the usual release naming conventions: bracketed-group anime releases,
// sXXeYY (optionally followed by an absolute number segment), NxMM, air
// dates, spelled-out season/episode, and bare absolute numbers.
var episodePatterns = []*regexp.Regexp{
	// [Group] Title - 123 [crc]
	regexp.MustCompile(`(?i)^\[[^\]]+\] ?(?P<title>.+?) ?[-_] ?(?P<number>\d+)\b[^/]*$`),

	// Title.S01E02, Title S01E02-E03, Title - S01E02 - 005 - junk
	regexp.MustCompile(`(?i)^(?:(?P<title>.+?)[ ._-]+)?s(?P<season>\d+)[ ._-]?e(?P<episode>\d+)(?:-e?\d+)*(?:[ ._-]+(?P<number>\d+)[ ._-])?[^/]*$`),

	// Title.1x02
	regexp.MustCompile(`(?i)^(?:(?P<title>.+?)[ ._-]+)?\[?(?P<season>\d+)x(?P<episode>\d+)\]?[^/]*$`),

	// Title.2014.06.03
	regexp.MustCompile(`^(?:(?P<title>.+?)[ ._-]+)?(?P<year>\d{4})[ ._-](?P<month>\d{2})[ ._-](?P<day>\d{2})[^/]*$`),

	// Title Season 1 Episode 2
	regexp.MustCompile(`(?i)^(?P<title>.+?) ?season ?(?P<season>\d+) ?episode ?(?P<episode>\d+)[^/]*$`),

	// Title.E123.junk
	regexp.MustCompile(`(?i)^(?P<title>.+?)[ ._-]e(?P<number>\d+)[ ._-][^/]*$`),

	// Title.123.junk
	regexp.MustCompile(`^(?P<title>.+?)[ ._-]+(?P<number>\d+)[ ._-][^/]*$`),
}

// ParseEpisode parses an episode filename. Returns nil when no pattern
// identifies an episode.
func ParseEpisode(path string) *ParsedEpisode {
	name := filepath.Base(path)

	for _, pattern := range episodePatterns {
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}

		result := &ParsedEpisode{}
		var year, month, day int
		for i, group := range pattern.SubexpNames() {
			value := match[i]
			if value == "" {
				continue
			}
			switch group {
			case "title":
				result.Title = strings.ToLower(strings.TrimSpace(value))
			case "season":
				result.Season, _ = strconv.Atoi(value)
			case "episode":
				result.Episode, _ = strconv.Atoi(value)
			case "number":
				result.Number, _ = strconv.Atoi(value)
			case "year":
				year, _ = strconv.Atoi(value)
			case "month":
				month, _ = strconv.Atoi(value)
			case "day":
				day, _ = strconv.Atoi(value)
			}
		}
		if year > 0 && month > 0 && day > 0 {
			result.AirDate = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		}

		if result.Title == "" {
			continue
		}
		if result.Number > 0 || (result.Season > 0 && result.Episode > 0) || !result.AirDate.IsZero() {
			return result
		}
	}
	return nil
}

// Tokens that end a movie title when no year is present.
var movieStopWords = map[string]bool{
	"480p": true, "576p": true, "720p": true, "1080p": true, "2160p": true,
	"4k": true, "uhd": true, "bluray": true, "brrip": true, "bdrip": true,
	"webdl": true, "web-dl": true, "webrip": true, "web": true,
	"hdtv": true, "dvdrip": true, "remux": true, "hdr": true, "hdr10": true,
	"x264": true, "x265": true, "h264": true, "h265": true, "hevc": true,
	"av1": true, "10bit": true, "8bit": true, "proper": true, "repack": true,
	"extended": true, "remastered": true, "unrated": true,
}

var movieYearRe = regexp.MustCompile(`^\(?((?:19|20)\d{2})\)?$`)

// ParseMovieTitle parses a movie filename into a canonical "title (year)"
// lookup string. Returns "" when the name yields no title.
func ParseMovieTitle(path string) string {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}

	var words []string
	year := ""
	for _, token := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '.' || r == '_' || r == ' '
	}) {
		if m := movieYearRe.FindStringSubmatch(token); m != nil && len(words) > 0 {
			year = m[1]
			break
		}
		if movieStopWords[strings.ToLower(token)] {
			break
		}
		words = append(words, token)
	}

	if len(words) == 0 {
		return ""
	}
	title := strings.ToLower(strings.Join(words, " "))
	if year != "" {
		title += " (" + year + ")"
	}
	return title
}
