// Package parts identifies fight-card segments and motorsport sessions
// in release and event titles.
package parts

import (
	"regexp"
	"strings"

	"github.com/sportarr/sportarr/internal/sport"
)

// Part is a named fight-card segment.
type Part struct {
	Name   string
	Number int
}

// Canonical fight-card segments for a PPV card.
var (
	EarlyPrelims = Part{Name: "Early Prelims", Number: 1}
	Prelims      = Part{Name: "Prelims", Number: 2}
	MainCard     = Part{Name: "Main Card", Number: 3}
	PostShow     = Part{Name: "Post Show", Number: 4}
)

// EventType describes how a fighting event structures its broadcast.
type EventType string

const (
	EventTypePPV             EventType = "ppv"
	EventTypeFightNight      EventType = "fight_night"
	EventTypeContenderSeries EventType = "contender_series"
)

// partPattern binds a compiled pattern to the segment it identifies.
// Order matters: more-specific patterns come first, so "early prelims"
// can never be consumed by the bare "prelims" pattern.
type partPattern struct {
	re   *regexp.Regexp
	part Part
}

var partPatterns = []partPattern{
	{regexp.MustCompile(`(?i)\bearly[ ._-]?prelims?\b`), EarlyPrelims},
	{regexp.MustCompile(`(?i)\bprelims?\b`), Prelims},
	{regexp.MustCompile(`(?i)\bmain[ ._-]?card\b`), MainCard},
	{regexp.MustCompile(`(?i)\bmc\b`), MainCard},
	{regexp.MustCompile(`(?i)\bppv\b`), MainCard},
	{regexp.MustCompile(`(?i)\bpost[ ._-]?show\b`), PostShow},
}

var fullEventRe = regexp.MustCompile(`(?i)\bfull[ ._-]?event\b`)

// Detect returns the fight-card segment named in a release title, or nil
// when the title names no segment or the sport has no segments. A "Full
// Event" token is a sentinel for the whole card in one file and also
// returns nil with full=true.
func Detect(title string, s sport.Sport) (part *Part, full bool) {
	if !sport.IsFighting(s) {
		return nil, false
	}

	if fullEventRe.MatchString(title) {
		return nil, true
	}

	for _, p := range partPatterns {
		if p.re.MatchString(title) {
			seg := p.part
			return &seg, false
		}
	}

	return nil, false
}

// SegmentsFor returns the segments a card of the given type broadcasts.
// Fight Night cards have no Early Prelims; the bare event name is the
// main card. Contender-series cards are single-part.
func SegmentsFor(t EventType) []Part {
	switch t {
	case EventTypePPV:
		return []Part{EarlyPrelims, Prelims, MainCard, PostShow}
	case EventTypeFightNight:
		return []Part{Prelims, MainCard}
	default:
		return nil
	}
}

// NormalizeForType maps a detected segment onto the card layout of the
// event type. Fight Night cards number Prelims(1) and MainCard(2).
func NormalizeForType(p Part, t EventType) Part {
	if t != EventTypeFightNight {
		return p
	}
	switch p.Name {
	case Prelims.Name:
		return Part{Name: Prelims.Name, Number: 1}
	case MainCard.Name:
		return Part{Name: MainCard.Name, Number: 2}
	}
	return p
}

var (
	ppvNumberRe  = regexp.MustCompile(`(?i)\bufc[ ._-]?(\d{1,3})\b`)
	fightNightRe = regexp.MustCompile(`(?i)\bufc[ ._-]?(fight[ ._-]?night|on[ ._-]?(espn|abc|fox))\b`)
	contenderRe  = regexp.MustCompile(`(?i)\b(contender[ ._-]?series|dwcs)\b`)
)

// InferEventType classifies a fighting event from its title.
func InferEventType(eventTitle string) EventType {
	if contenderRe.MatchString(eventTitle) {
		return EventTypeContenderSeries
	}
	if fightNightRe.MatchString(eventTitle) {
		return EventTypeFightNight
	}
	if ppvNumberRe.MatchString(eventTitle) {
		return EventTypePPV
	}
	return EventTypeFightNight
}

// Session is a motorsport session type. Sessions are distinct events
// upstream, never parts; the detector exists only to filter monitored
// sessions.
type Session string

const (
	SessionFP1              Session = "FP1"
	SessionFP2              Session = "FP2"
	SessionFP3              Session = "FP3"
	SessionQualifying       Session = "Qualifying"
	SessionSprintQualifying Session = "Sprint Qualifying"
	SessionSprint           Session = "Sprint"
	SessionRace             Session = "Race"
)

type sessionPattern struct {
	re      *regexp.Regexp
	session Session
}

var sessionPatterns = []sessionPattern{
	{regexp.MustCompile(`(?i)\b(fp1|free[ ._-]?practice[ ._-]?(one|1))\b`), SessionFP1},
	{regexp.MustCompile(`(?i)\b(fp2|free[ ._-]?practice[ ._-]?(two|2))\b`), SessionFP2},
	{regexp.MustCompile(`(?i)\b(fp3|free[ ._-]?practice[ ._-]?(three|3))\b`), SessionFP3},
	{regexp.MustCompile(`(?i)\bsprint[ ._-]?(qualifying|shootout)\b`), SessionSprintQualifying},
	{regexp.MustCompile(`(?i)\bsprint\b`), SessionSprint},
	{regexp.MustCompile(`(?i)\b(qualifying|quali)\b`), SessionQualifying},
	{regexp.MustCompile(`(?i)\b(race|grand[ ._-]?prix)\b`), SessionRace},
}

// DetectSession returns the motorsport session named in a title, if any.
func DetectSession(title string) (Session, bool) {
	for _, p := range sessionPatterns {
		if p.re.MatchString(title) {
			return p.session, true
		}
	}
	return "", false
}

// ByName looks up a canonical segment by name, tolerating spacing and
// case differences.
func ByName(name string) (Part, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(name), " "))
	switch key {
	case "early prelims", "earlyprelims":
		return EarlyPrelims, true
	case "prelims":
		return Prelims, true
	case "main card", "maincard":
		return MainCard, true
	case "post show", "postshow":
		return PostShow, true
	}
	return Part{}, false
}
