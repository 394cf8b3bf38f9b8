// Package matching associates releases with monitored events.
package matching

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	apostropheRegex    = regexp.MustCompile("['`‘’ʼ]")
	specialCharsRegex  = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	multipleSpaceRegex = regexp.MustCompile(`\s+`)
)

// stopwords carry no identity and are dropped before token comparison.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "and": true,
	"vs": true, "v": true, "at": true, "in": true, "on": true,
	"fc": true, "2160p": true, "1080p": true, "720p": true, "480p": true,
	"web": true, "webdl": true, "webrip": true, "hdtv": true, "bluray": true,
	"dl": true, "rip": true, "x264": true, "x265": true, "hevc": true,
	"av1": true, "h264": true, "h265": true, "multi": true, "repack": true,
}

// NormalizeTitle converts a title to a normalized form for comparison:
// lowercase, diacritics stripped, apostrophes removed within words,
// remaining punctuation replaced with spaces, whitespace collapsed.
func NormalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	normalized = removeAccents(normalized)
	normalized = apostropheRegex.ReplaceAllString(normalized, "")
	normalized = specialCharsRegex.ReplaceAllString(normalized, " ")
	normalized = multipleSpaceRegex.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// Tokenize normalizes a title and splits it into content tokens with
// stopwords removed.
func Tokenize(title string) []string {
	var tokens []string
	for _, tok := range strings.Fields(NormalizeTitle(title)) {
		if stopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// aliasGroups are interchangeable geographic and organisational terms; a
// token from one member expands to every member. Multi-word members are
// compared against the joined token stream.
var aliasGroups = [][]string{
	{"abu dhabi", "abudhabi", "yas marina", "yasmarina"},
	{"grand prix", "gp"},
	{"monaco", "monte carlo", "montecarlo"},
	{"silverstone", "british", "britain", "great britain"},
	{"spa", "spa francorchamps", "belgian", "belgium"},
	{"monza", "italian", "italy"},
	{"interlagos", "sao paulo", "saopaulo", "brazilian", "brazil"},
	{"suzuka", "japanese", "japan"},
	{"cota", "circuit of the americas", "united states", "usa", "austin"},
	{"mexico city", "mexicocity", "mexican", "mexico"},
	{"las vegas", "lasvegas", "vegas"},
	{"lusail", "qatar"},
	{"jeddah", "saudi arabian", "saudi arabia", "saudi"},
	{"bahrain", "sakhir"},
	{"melbourne", "australian", "australia", "albert park"},
	{"zandvoort", "dutch", "netherlands"},
	{"hungaroring", "hungarian", "hungary", "budapest"},
	{"barcelona", "spanish", "spain", "catalunya"},
	{"imola", "emilia romagna", "emiliaromagna"},
	{"montreal", "canadian", "canada"},
	{"baku", "azerbaijan"},
	{"shanghai", "chinese", "china"},
	{"singapore", "marina bay"},
	{"miami", "hard rock"},
	{"red bull ring", "redbullring", "austrian", "austria", "spielberg"},
	{"ultimate fighting championship", "ufc"},
	{"dana whites contender series", "contender series", "dwcs"},
}

// aliasIndex maps each member to its group.
var aliasIndex map[string][]string

func init() {
	aliasIndex = make(map[string][]string)
	for _, group := range aliasGroups {
		for _, member := range group {
			aliasIndex[member] = group
		}
	}
}

// ExpandAliases returns the alias set for a normalized term, including
// the term itself.
func ExpandAliases(term string) []string {
	term = NormalizeTitle(term)
	if group, ok := aliasIndex[term]; ok {
		return group
	}
	return []string{term}
}

// ExpandTokens returns the token set of a title unioned with every alias
// of every member term. Multi-word aliases contribute their individual
// words and their joined form.
func ExpandTokens(title string) map[string]bool {
	set := make(map[string]bool)
	tokens := Tokenize(title)
	joined := strings.Join(tokens, " ")

	add := func(term string) {
		for _, w := range strings.Fields(term) {
			set[w] = true
		}
		set[strings.ReplaceAll(term, " ", "")] = true
	}

	for _, tok := range tokens {
		add(tok)
		for _, alias := range ExpandAliases(tok) {
			add(alias)
		}
	}

	// Multi-word alias members only surface in the joined stream.
	for member, group := range aliasIndex {
		if strings.Contains(" "+joined+" ", " "+member+" ") {
			for _, alias := range group {
				add(alias)
			}
		}
	}

	return set
}

// ContainsTerm reports whether any alias-expanded variant of term occurs
// in the token set.
func ContainsTerm(tokens map[string]bool, term string) bool {
	if NormalizeTitle(term) == "" {
		return false
	}
	for _, alias := range ExpandAliases(term) {
		collapsed := strings.ReplaceAll(alias, " ", "")
		if tokens[collapsed] {
			return true
		}
		allWords := true
		for _, w := range strings.Fields(alias) {
			if !tokens[w] {
				allWords = false
				break
			}
		}
		if allWords {
			return true
		}
	}
	return false
}
