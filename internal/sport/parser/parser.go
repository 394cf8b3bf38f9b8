// Package parser decodes release titles into structured metadata.
//
// Parsing is a deterministic rule stack applied in fixed order; later
// rules observe fields extracted by earlier ones. The parser never
// fails: a title it cannot decode yields a result with zero-valued
// fields and the original title preserved.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sportarr/sportarr/internal/sport"
	"github.com/sportarr/sportarr/internal/sport/parts"
)

// ParsedRelease is the structured form of a release title.
type ParsedRelease struct {
	Title       string
	SportPrefix string
	Sport       sport.Sport
	EventNumber int
	Year        int
	Month       int
	Day         int
	Round       int
	Part        *parts.Part
	FullEvent   bool
	Quality     string
	Source      string
	Codec       string
	Language    string
	Group       string
	IsPack      bool
}

// prefixPattern anchors a league or organisation token on word
// boundaries. First match wins, so longer tokens come before their
// prefixes (Formula1 before F1 is irrelevant here, but UFC before
// nothing matters for event numbers).
type prefixPattern struct {
	re     *regexp.Regexp
	prefix string
	sport  sport.Sport
}

var prefixPatterns = []prefixPattern{
	{regexp.MustCompile(`\bufc\b`), "UFC", sport.Fighting},
	{regexp.MustCompile(`\bbellator\b`), "Bellator", sport.Fighting},
	{regexp.MustCompile(`\bpfl\b`), "PFL", sport.Fighting},
	{regexp.MustCompile(`\bwwe\b`), "WWE", sport.Wrestling},
	{regexp.MustCompile(`\baew\b`), "AEW", sport.Wrestling},
	{regexp.MustCompile(`\bnfl\b`), "NFL", sport.TeamSport},
	{regexp.MustCompile(`\bnba\b`), "NBA", sport.TeamSport},
	{regexp.MustCompile(`\bnhl\b`), "NHL", sport.TeamSport},
	{regexp.MustCompile(`\bmlb\b`), "MLB", sport.TeamSport},
	{regexp.MustCompile(`\bmls\b`), "MLS", sport.TeamSport},
	{regexp.MustCompile(`\bepl\b|\bpremier league\b`), "EPL", sport.TeamSport},
	{regexp.MustCompile(`\bucl\b|\bchampions league\b`), "UCL", sport.TeamSport},
	{regexp.MustCompile(`\bla ?liga\b`), "LaLiga", sport.TeamSport},
	{regexp.MustCompile(`\bformula ?1\b|\bf1\b`), "Formula1", sport.Motorsport},
	{regexp.MustCompile(`\bmotogp\b`), "MotoGP", sport.Motorsport},
	{regexp.MustCompile(`\bindycar\b`), "IndyCar", sport.Motorsport},
	{regexp.MustCompile(`\bnascar\b`), "NASCAR", sport.Motorsport},
	{regexp.MustCompile(`\bwec\b`), "WEC", sport.Motorsport},
	{regexp.MustCompile(`\bboxing\b`), "Boxing", sport.Boxing},
}

var (
	yearRe  = regexp.MustCompile(`\b(20[2-9]\d|2100)\b`)
	dateRe  = regexp.MustCompile(`\b(20\d\d)[ .-](\d{1,2})[ .-](\d{1,2})\b`)
	roundRe = regexp.MustCompile(`\b(?:round|week|r|w) ?(\d{1,2})\b`)

	eventNumberRe = regexp.MustCompile(`\b(?:ufc|bellator|pfl) ?(\d{1,3})\b`)

	versusRe       = regexp.MustCompile(`\bvs?\b|@`)
	packTokenRe    = regexp.MustCompile(`\bcomplete\b|\bseason pack\b|\ball events\b`)
	packRoundRe    = regexp.MustCompile(`\b(?:week|round) ?\d+\b`)
	groupSuffixRe  = regexp.MustCompile(`-([A-Za-z0-9]+)(?:\.\w{2,4})?$`)
	languageTokens = map[string]string{
		"multi":   "Multi",
		"french":  "French",
		"german":  "German",
		"spanish": "Spanish",
		"italian": "Italian",
		"english": "English",
	}
)

// Parse decodes a release title. It is pure and never returns an error.
func Parse(title string) ParsedRelease {
	p := ParsedRelease{Title: title}

	// Working copy: lowercase, separators to spaces, collapsed.
	work := strings.ToLower(title)
	work = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(work)
	work = strings.Join(strings.Fields(work), " ")

	if m := dateRe.FindStringSubmatch(work); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if mo >= 1 && mo <= 12 && d >= 1 && d <= 31 {
			p.Month = mo
			p.Day = d
			if y >= 2020 && y <= 2100 {
				p.Year = y
			}
		}
	}
	if p.Year == 0 {
		if m := yearRe.FindString(work); m != "" {
			p.Year, _ = strconv.Atoi(m)
		}
	}

	if m := roundRe.FindStringSubmatch(work); m != nil {
		p.Round, _ = strconv.Atoi(m[1])
	}

	for _, pat := range prefixPatterns {
		if pat.re.MatchString(work) {
			p.SportPrefix = pat.prefix
			p.Sport = pat.sport
			break
		}
	}

	if m := eventNumberRe.FindStringSubmatch(work); m != nil {
		p.EventNumber, _ = strconv.Atoi(m[1])
	}

	if sport.IsFighting(p.Sport) {
		p.Part, p.FullEvent = parts.Detect(work, p.Sport)
	}

	p.Quality = parseQuality(work)
	p.Source = parseSource(work)
	p.Codec = parseCodec(work)

	for token, lang := range languageTokens {
		if strings.Contains(work, token) {
			p.Language = lang
			break
		}
	}

	if m := groupSuffixRe.FindStringSubmatch(strings.TrimSpace(title)); m != nil {
		if !isKnownToken(m[1]) {
			p.Group = m[1]
		}
	}

	if packTokenRe.MatchString(work) {
		p.IsPack = true
	} else if packRoundRe.MatchString(work) && !versusRe.MatchString(work) && p.Sport == sport.TeamSport {
		p.IsPack = true
	}

	return p
}

func parseQuality(work string) string {
	switch {
	case containsAny(work, "2160p", "uhd", "4k"):
		return "2160p"
	case containsAny(work, "1080p", "fhd"):
		return "1080p"
	case containsAny(work, "720p"):
		return "720p"
	case containsAny(work, "480p", "sdtv", "dvdrip"):
		return "SD"
	}
	return ""
}

func parseSource(work string) string {
	switch {
	case containsAny(work, "remux"):
		return "Remux"
	case containsAny(work, "bluray", "blu ray", "bdrip", "brrip"):
		return "BluRay"
	case containsAny(work, "web dl", "webdl"):
		return "WEB-DL"
	case containsAny(work, "webrip", "web rip"):
		return "WEBRip"
	case containsAny(work, "hdtv"):
		return "HDTV"
	case containsAny(work, "dvdrip"):
		return "DVDRip"
	case containsAny(work, "sdtv"):
		return "SDTV"
	}
	return ""
}

func parseCodec(work string) string {
	switch {
	case containsAny(work, "x265"):
		return "x265"
	case containsAny(work, "hevc", "h265", "h 265"):
		return "HEVC"
	case containsAny(work, "av1"):
		return "AV1"
	case containsAny(work, "x264", "h264", "h 264", "avc"):
		return "x264"
	case containsAny(work, "xvid", "divx"):
		return "XviD"
	}
	return ""
}

func containsAny(s string, tokens ...string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// isKnownToken filters release-group candidates that are really trailing
// quality or codec tokens ("…WEB-DL" leaves "DL" after the last hyphen).
func isKnownToken(s string) bool {
	switch strings.ToLower(s) {
	case "dl", "rip", "hdtv", "webdl", "webrip", "bluray", "remux",
		"x264", "x265", "hevc", "av1", "xvid",
		"2160p", "1080p", "720p", "480p":
		return true
	}
	return false
}
