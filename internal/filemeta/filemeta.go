// Package filemeta derives display metadata (quality, audio, season, episode,
// title) from uploaded file names.
package filemeta

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// UnknownQuality is returned when no quality marker matches.
const UnknownQuality = "UNKNOWN"

// Audio labels.
const (
	AudioDubbed = "English [Dub+Sub]"
	AudioSubbed = "Japanese [Sub]"
	AudioNone   = "N/A"
)

// qualityMarkers is scanned in order; the first hit wins.
var qualityMarkers = []string{"480p", "720p", "1080p", "hdrip", "4k", "2k"}

var (
	seasonRe  = regexp.MustCompile(`\b(?:s|season)[\s:_-]*(\d{1,2})\b`)
	episodeRe = regexp.MustCompile(`\b(?:ep|episode)[\s:_-]*(\d{1,3})\b`)
)

// Meta is everything derived from one file name.
type Meta struct {
	Quality string
	Audio   string
	Season  string
	Episode string
}

// Parse derives all metadata from name.
func Parse(name string) Meta {
	season, episode := SeasonEpisode(name)
	return Meta{
		Quality: Quality(name),
		Audio:   Audio(name),
		Season:  season,
		Episode: episode,
	}
}

// Quality returns the first known quality marker contained in name,
// upper-cased, or UnknownQuality.
func Quality(name string) string {
	lower := strings.ToLower(name)
	for _, q := range qualityMarkers {
		if strings.Contains(lower, q) {
			return strings.ToUpper(q)
		}
	}
	return UnknownQuality
}

// Audio classifies the audio track from "dub"/"sub" substrings.
func Audio(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "dub"):
		return AudioDubbed
	case strings.Contains(lower, "sub"):
		return AudioSubbed
	default:
		return AudioNone
	}
}

// SeasonEpisode extracts two-digit season and episode numbers, defaulting to "01".
func SeasonEpisode(name string) (season, episode string) {
	folded := foldClasses(strings.ToLower(name))
	return pad(seasonRe, folded), pad(episodeRe, folded)
}

// foldClasses maps non-ASCII runes onto the ASCII classes regexp's \b, \s
// and \d understand: letters, marks and digits become the word character 'x'
// (which is neither a keyword letter nor a digit) and spaces become ' '.
// "шоуs05" therefore has no boundary before "s", and a no-break space
// separates "season" from its number.
func foldClasses(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r <= unicode.MaxASCII:
			return r
		case unicode.IsLetter(r), unicode.IsMark(r), unicode.IsDigit(r):
			return 'x'
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, s)
}

// Title strips the file extension from name, or returns "Untitled".
func Title(name string) string {
	if name == "" {
		return "Untitled"
	}
	if title := strings.TrimSuffix(name, filepath.Ext(name)); title != "" {
		return title
	}
	return name
}

func pad(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "01"
	}
	if n := len(m[1]); n < 2 {
		return strings.Repeat("0", 2-n) + m[1]
	}
	return m[1]
}
