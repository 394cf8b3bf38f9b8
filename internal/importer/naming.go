package importer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/sport/parser"
)

// Default naming formats. Folder format segments may contain path
// separators; everything else is sanitized per segment.
const (
	DefaultFileFormat   = "{Event Title} ({Year}) - {Quality Full}"
	DefaultFolderFormat = "{League}/{Event Title} ({Year})"
)

var tokenPattern = regexp.MustCompile(`\{[^{}]+\}`)

var illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00]`)
var multiSpace = regexp.MustCompile(`\s+`)

// sanitizeSegment strips characters unsafe for a single path segment.
func sanitizeSegment(name string) string {
	name = illegalChars.ReplaceAllString(name, " ")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.Trim(name, " .")
}

// NamingContext carries everything token expansion can draw on.
type NamingContext struct {
	Event      *events.Event
	LeagueName string
	Parsed     parser.ParsedRelease
}

func (c *NamingContext) tokens() map[string]string {
	year := c.Event.Year
	if year == 0 && c.Parsed.Year != 0 {
		year = c.Parsed.Year
	}

	qualityFull := strings.TrimSpace(strings.TrimSpace(c.Parsed.Source) + " " + c.Parsed.Quality)

	t := map[string]string{
		"{League}":        c.LeagueName,
		"{Event Title}":   c.Event.Title,
		"{Year}":          fmt.Sprintf("%d", year),
		"{Quality Full}":  qualityFull,
		"{Quality Title}": c.Parsed.Quality,
		"{Source}":        c.Parsed.Source,
		"{Codec}":         c.Parsed.Codec,
		"{Release Group}": c.Parsed.Group,
	}
	if c.Parsed.Part != nil {
		t["{Part}"] = c.Parsed.Part.Name
	} else {
		t["{Part}"] = ""
	}
	if c.Event.EventDate != nil {
		t["{Event Date}"] = c.Event.EventDate.UTC().Format(time.DateOnly)
	} else {
		t["{Event Date}"] = ""
	}
	return t
}

// ExpandTokens fills a naming format from the context. Unknown tokens
// expand to nothing. Each path segment is sanitized independently so a
// title cannot escape its folder.
func ExpandTokens(format string, ctx *NamingContext) string {
	tokens := ctx.tokens()
	segments := strings.Split(format, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		expanded := tokenPattern.ReplaceAllStringFunc(seg, func(tok string) string {
			return tokens[tok]
		})
		expanded = sanitizeSegment(expanded)
		// A segment whose tokens were all empty drops out, " - "
		// leftovers included.
		expanded = strings.Trim(expanded, " -")
		if expanded != "" {
			out = append(out, expanded)
		}
	}
	return filepath.Join(out...)
}

// PartSuffix returns the multi-part marker for a file name, e.g.
// " - pt3" for the main card of a fight night.
func PartSuffix(parsed parser.ParsedRelease) string {
	if parsed.Part == nil {
		return ""
	}
	return fmt.Sprintf(" - pt%d", parsed.Part.Number)
}
