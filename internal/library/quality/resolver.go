package quality

// sourceKeys maps parser source names onto quality-definition sources.
var sourceKeys = map[string]string{
	"BluRay": "bluray",
	"Remux":  "remux",
	"WEB-DL": "webdl",
	"WEBRip": "webrip",
	"HDTV":   "tv",
	"SDTV":   "tv",
	"DVDRip": "dvd",
}

// resolutionKeys maps parser resolution families onto pixel heights.
var resolutionKeys = map[string]int{
	"2160p": 2160,
	"1080p": 1080,
	"720p":  720,
	"SD":    480,
}

// webFamily groups sources that are interchangeable for profile items
// written against the WEB family.
var webFamily = map[string]bool{"webdl": true, "webrip": true}

// Resolve maps parsed resolution and source onto a canonical quality
// definition. Releases the resolver cannot place yield Unknown.
func Resolve(resolution, source string) Quality {
	res, ok := resolutionKeys[resolution]
	if !ok {
		return Unknown
	}

	src := sourceKeys[source]
	if src == "" {
		// Resolution without a recognised source: assume a broadcast rip.
		src = "tv"
	}

	if q, ok := lookupBySourceResolution(src, res); ok {
		return q
	}
	// Remux only exists at 1080p and above; degrade to bluray.
	if src == "remux" {
		if q, ok := lookupBySourceResolution("bluray", res); ok {
			return q
		}
	}
	return Unknown
}

func lookupBySourceResolution(source string, resolution int) (Quality, bool) {
	for _, q := range PredefinedQualities {
		if q.Source == source && q.Resolution == resolution {
			return q, true
		}
	}
	return Quality{}, false
}

// Resolution is the outcome of resolving a release against a profile.
type Resolution struct {
	Quality Quality
	Rank    int
	Allowed bool
}

// ResolveForProfile resolves parsed fields and ranks the result within
// a profile. Matching is group-aware: when the exact quality is not an
// allowed item, an allowed item of the same resolution within the same
// source family (WEB-DL/WEBRip) is used instead. Exact beats grouped.
func ResolveForProfile(resolution, source string, p *Profile) Resolution {
	q := Resolve(resolution, source)
	if q.ID == 0 {
		return Resolution{Quality: Unknown, Rank: -1}
	}

	if p.IsAcceptable(q.ID) {
		return Resolution{Quality: q, Rank: p.Rank(q.ID), Allowed: true}
	}

	if webFamily[q.Source] {
		for _, item := range p.Items {
			if !item.Allowed {
				continue
			}
			if item.Quality.Resolution == q.Resolution && webFamily[item.Quality.Source] {
				return Resolution{Quality: item.Quality, Rank: p.Rank(item.Quality.ID), Allowed: true}
			}
		}
	}

	return Resolution{Quality: q, Rank: -1}
}
