// Package decisioning evaluates releases against quality profiles,
// custom formats, and grab policy.
package decisioning

import (
	"fmt"

	"github.com/sportarr/sportarr/internal/indexer/types"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/library/quality"
	"github.com/sportarr/sportarr/internal/sport/parser"
)

// Weight applied per quality rank step.
const qualityRankWeight = 100

// EvalInput carries the policy context for evaluating one release.
type EvalInput struct {
	Profile          *quality.Profile
	Formats          []*quality.CustomFormat
	Definitions      []quality.Definition
	Event            *events.Event
	RequestedPart    string
	MultiPartEnabled bool
}

// Evaluation is the outcome of evaluating a release. Approved is true
// exactly when no rejection fired.
type Evaluation struct {
	Approved          bool
	Rejections        []string
	Quality           quality.Quality
	QualityScore      int
	CustomFormatScore int
	SizeScore         int
	TotalScore        int
	MatchedFormats    []string
}

// Evaluate scores a release against the profile and format policy.
// It never mutates its inputs.
func Evaluate(rel *types.ReleaseSearchResult, in EvalInput) Evaluation {
	parsed := parser.Parse(rel.Title)

	var ev Evaluation

	reject := func(format string, args ...interface{}) {
		ev.Rejections = append(ev.Rejections, fmt.Sprintf(format, args...))
	}

	// Resolution is group-aware: a WEB-DL release satisfies a profile
	// whose allowed item is the WEBRip of the same resolution.
	if in.Profile != nil {
		res := quality.ResolveForProfile(parsed.Quality, parsed.Source, in.Profile)
		ev.Quality = res.Quality
		if !res.Allowed {
			reject("quality %s is not wanted in profile %s", res.Quality.Name, in.Profile.Name)
		} else {
			ev.QualityScore = res.Rank * qualityRankWeight
		}
	} else {
		ev.Quality = quality.Resolve(parsed.Quality, parsed.Source)
	}
	q := ev.Quality

	if rel.Size > 0 && !quality.SizeAcceptable(in.Definitions, q.ID, rel.Size) {
		reject("size %.1f GB is outside the allowed range for %s",
			float64(rel.Size)/(1024*1024*1024), q.Name)
	}

	formatInput := quality.FormatInput{
		Title:        rel.Title,
		Source:       parsed.Source,
		Resolution:   q.Resolution,
		Codec:        parsed.Codec,
		Language:     parsed.Language,
		ReleaseGroup: parsed.Group,
		SizeBytes:    rel.Size,
		IndexerFlags: rel.IndexerFlags,
	}
	ev.CustomFormatScore, ev.MatchedFormats = scoreFormats(in, formatInput, reject)

	if in.Profile != nil && ev.CustomFormatScore < in.Profile.MinFormatScore {
		reject("custom format score %d is below profile minimum %d",
			ev.CustomFormatScore, in.Profile.MinFormatScore)
	}

	checkPartRules(parsed, in, reject)

	ev.SizeScore = sizeScore(in.Definitions, q.ID, rel.Size)
	ev.TotalScore = ev.QualityScore + ev.CustomFormatScore + ev.SizeScore
	ev.Approved = len(ev.Rejections) == 0
	return ev
}

// scoreFormats sums profile scores over matched formats. A format whose
// required indexer-flag specifications fail produces a rejection.
func scoreFormats(in EvalInput, fi quality.FormatInput, reject func(string, ...interface{})) (int, []string) {
	if in.Profile == nil || len(in.Formats) == 0 {
		return 0, nil
	}

	scores := make(map[int64]int, len(in.Profile.FormatItems))
	for _, item := range in.Profile.FormatItems {
		scores[item.FormatID] = item.Score
	}

	total := 0
	var matched []string
	for _, f := range in.Formats {
		if f.Matches(fi) {
			total += scores[f.ID]
			matched = append(matched, f.Name)
			continue
		}
		if _, scored := scores[f.ID]; scored && failsRequiredFlagSpec(f, fi) {
			reject("indexer flags do not satisfy format %s", f.Name)
		}
	}
	return total, matched
}

func failsRequiredFlagSpec(f *quality.CustomFormat, fi quality.FormatInput) bool {
	for i := range f.Specifications {
		s := &f.Specifications[i]
		if s.Required && s.Type == quality.SpecIndexerFlag && !s.Match(fi) {
			return true
		}
	}
	return false
}

// checkPartRules enforces the multi-part policy against the parsed
// release shape.
func checkPartRules(parsed parser.ParsedRelease, in EvalInput, reject func(string, ...interface{})) {
	if !in.MultiPartEnabled {
		if parsed.Part != nil {
			reject("part release %s rejected: multi-part episodes are disabled", parsed.Part.Name)
		}
		return
	}

	if parsed.Part != nil && in.Event != nil && !in.Event.PartMonitored(parsed.Part.Name) {
		reject("part %s is not monitored", parsed.Part.Name)
	}

	if parsed.FullEvent && in.RequestedPart != "" {
		if in.Event == nil || !in.Event.FullEventAllowed() {
			reject("full event release rejected: searching for part %s", in.RequestedPart)
		}
	}
}

// sizeScore prefers sizes near the preferred size when one is defined,
// otherwise larger is better up to the allowed maximum.
func sizeScore(defs []quality.Definition, qualityID int, sizeBytes int64) int {
	if sizeBytes <= 0 {
		return 0
	}
	sizeMB := float64(sizeBytes) / (1024 * 1024)

	d, ok := quality.DefinitionFor(defs, qualityID)
	if !ok {
		return 0
	}
	if d.PreferredMB > 0 {
		diff := sizeMB - d.PreferredMB
		if diff < 0 {
			diff = -diff
		}
		return -int(diff)
	}
	if d.MaxSizeMB > 0 && sizeMB > d.MaxSizeMB {
		sizeMB = d.MaxSizeMB
	}
	return int(sizeMB)
}

// Annotate writes an evaluation back onto a search result for transport
// to the UI and ranking.
func Annotate(rel *types.ReleaseSearchResult, ev Evaluation) {
	rel.Approved = ev.Approved
	rel.Rejections = ev.Rejections
	rel.Quality = ev.Quality.Name
	rel.QualityScore = ev.QualityScore
	rel.CustomFormatScore = ev.CustomFormatScore
	rel.SizeScore = ev.SizeScore
	rel.Score = ev.TotalScore
	rel.MatchedFormats = ev.MatchedFormats
}
