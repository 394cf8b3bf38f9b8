package matching

import (
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/sport"
	"github.com/sportarr/sportarr/internal/sport/parser"
)

// MinConfidence is the score below which a soft match is rejected.
const MinConfidence = 60

// Soft-scoring weights. Only the categories applicable to an event
// contribute to the possible total; confidence is achieved/possible.
const (
	weightOverlap    = 40
	weightLocation   = 20
	weightTeams      = 25
	weightIdentifier = 25
	weightPart       = 10
)

// Result is the outcome of matching a release against an event.
type Result struct {
	IsMatch         bool     `json:"isMatch"`
	IsHardRejection bool     `json:"isHardRejection"`
	Confidence      int      `json:"confidence"`
	Reasons         []string `json:"reasons,omitempty"`
}

// EventKey is the precomputed match profile of an event. Building it
// once lets one event be compared against many releases cheaply.
type EventKey struct {
	Event  *events.Event
	Parsed parser.ParsedRelease
	Tokens map[string]bool
	Year   int
}

// BuildEventKey precomputes the token sets and parsed identity of an event.
func BuildEventKey(ev *events.Event) EventKey {
	year := ev.Year
	if year == 0 && ev.EventDate != nil {
		year = ev.EventDate.Year()
	}

	title := ev.Title
	if ev.Venue != "" {
		title += " " + ev.Venue
	}
	if ev.Location != "" {
		title += " " + ev.Location
	}
	if ev.HomeTeam != "" {
		title += " " + ev.HomeTeam
	}
	if ev.AwayTeam != "" {
		title += " " + ev.AwayTeam
	}

	return EventKey{
		Event:  ev,
		Parsed: parser.Parse(ev.Title),
		Tokens: ExpandTokens(title),
		Year:   year,
	}
}

// Match decides whether a parsed release corresponds to an event.
// Structural mismatches short-circuit as hard rejections with zero
// confidence; otherwise a weighted soft score decides.
func Match(rel parser.ParsedRelease, key EventKey, multiPartEnabled bool) Result {
	ev := key.Event

	if r, rejected := hardReject(rel, key); rejected {
		return r
	}

	relTokens := ExpandTokens(rel.Title)

	achieved, possible := 0.0, 0.0
	var reasons []string

	// Title-token overlap.
	possible += weightOverlap
	overlap := jaccard(relTokens, key.Tokens)
	achieved += overlap * weightOverlap
	reasons = append(reasons, fmt.Sprintf("token overlap %.0f%%", overlap*100))

	// Venue / location agreement.
	if ev.Location != "" || ev.Venue != "" {
		possible += weightLocation
		if locationMatches(relTokens, ev) {
			achieved += weightLocation
			reasons = append(reasons, "location match")
		}
	}

	// Team-name agreement.
	if ev.HomeTeam != "" && ev.AwayTeam != "" {
		possible += weightTeams
		home := teamMatches(relTokens, ev.HomeTeam)
		away := teamMatches(relTokens, ev.AwayTeam)
		switch {
		case home && away:
			achieved += weightTeams
			reasons = append(reasons, "both teams match")
		case home || away:
			achieved += weightTeams / 2
			reasons = append(reasons, "one team matches")
		}
	}

	// Exact identifier agreement: round, date, or fight-card number.
	switch {
	case ev.Round != nil:
		possible += weightIdentifier
		if rel.Round == *ev.Round {
			achieved += weightIdentifier
			reasons = append(reasons, "round match")
		}
	case ev.EventDate != nil && rel.Month > 0:
		possible += weightIdentifier
		if int(ev.EventDate.Month()) == rel.Month && ev.EventDate.Day() == rel.Day {
			achieved += weightIdentifier
			reasons = append(reasons, "date match")
		}
	case key.Parsed.EventNumber > 0:
		possible += weightIdentifier
		if rel.EventNumber == key.Parsed.EventNumber {
			achieved += weightIdentifier
			reasons = append(reasons, "event number match")
		}
	}

	// Part-monitored agreement for multi-part fight cards.
	if multiPartEnabled && sport.IsFighting(ev.Sport) && rel.Part != nil {
		possible += weightPart
		if ev.PartMonitored(rel.Part.Name) {
			achieved += weightPart
			reasons = append(reasons, "part monitored")
		}
	}

	confidence := int(achieved / possible * 100)
	if confidence >= MinConfidence {
		return Result{IsMatch: true, Confidence: confidence, Reasons: reasons}
	}
	return Result{
		Confidence: confidence,
		Reasons:    append(reasons, fmt.Sprintf("confidence %d below threshold %d", confidence, MinConfidence)),
	}
}

func hardReject(rel parser.ParsedRelease, key EventKey) (Result, bool) {
	ev := key.Event

	reject := func(reason string) (Result, bool) {
		return Result{IsHardRejection: true, Reasons: []string{reason}}, true
	}

	if rel.Year > 0 && key.Year > 0 && rel.Year != key.Year {
		return reject(fmt.Sprintf("year mismatch: release %d, event %d", rel.Year, key.Year))
	}

	if rel.SportPrefix != "" && key.Parsed.SportPrefix != "" && rel.SportPrefix != key.Parsed.SportPrefix {
		return reject(fmt.Sprintf("sport prefix mismatch: release %s, event %s", rel.SportPrefix, key.Parsed.SportPrefix))
	}

	if sport.IsRoundBased(ev.Sport) && ev.Round != nil && rel.Round > 0 && rel.Round != *ev.Round {
		return reject(fmt.Sprintf("round mismatch: release %d, event %d", rel.Round, *ev.Round))
	}

	if sport.IsDateBased(ev.Sport) && ev.EventDate != nil && rel.Month > 0 {
		if int(ev.EventDate.Month()) != rel.Month || ev.EventDate.Day() != rel.Day {
			return reject("date mismatch")
		}
	}

	if sport.IsRoundBased(ev.Sport) && (ev.Location != "" || ev.Venue != "") {
		relTokens := ExpandTokens(rel.Title)
		if !locationMatches(relTokens, ev) {
			return reject("release does not name the event location")
		}
	}

	if sport.IsDateBased(ev.Sport) && ev.HomeTeam != "" && ev.AwayTeam != "" {
		relTokens := ExpandTokens(rel.Title)
		if !teamMatches(relTokens, ev.HomeTeam) && !teamMatches(relTokens, ev.AwayTeam) {
			return reject("release names neither team")
		}
	}

	if sport.IsFighting(ev.Sport) && key.Parsed.EventNumber > 0 && rel.EventNumber > 0 &&
		rel.EventNumber != key.Parsed.EventNumber {
		return reject(fmt.Sprintf("event number mismatch: release %d, event %d", rel.EventNumber, key.Parsed.EventNumber))
	}

	return Result{}, false
}

func locationMatches(relTokens map[string]bool, ev *events.Event) bool {
	if ev.Location != "" && ContainsTerm(relTokens, ev.Location) {
		return true
	}
	if ev.Venue != "" && ContainsTerm(relTokens, ev.Venue) {
		return true
	}
	return false
}

// teamMatches checks for any shared content token with the team name,
// falling back to fuzzy comparison for concatenated forms.
func teamMatches(relTokens map[string]bool, team string) bool {
	for _, tok := range Tokenize(team) {
		if relTokens[tok] {
			return true
		}
	}

	collapsed := strings.ReplaceAll(NormalizeTitle(team), " ", "")
	if collapsed == "" {
		return false
	}
	if relTokens[collapsed] {
		return true
	}
	for tok := range relTokens {
		if len(tok) < 4 {
			continue
		}
		if edlib.JaroWinklerSimilarity(tok, collapsed) >= 0.92 {
			return true
		}
	}
	return false
}

// jaccard compares content tokens only. Numeric tokens (years, dates,
// card numbers) are excluded; those are scored by the identifier
// category and would otherwise dilute the overlap.
func jaccard(a, b map[string]bool) float64 {
	intersection, union := 0, 0
	for tok := range a {
		if isNumeric(tok) {
			continue
		}
		union++
		if b[tok] {
			intersection++
		}
	}
	for tok := range b {
		if isNumeric(tok) {
			continue
		}
		if !a[tok] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func isNumeric(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
