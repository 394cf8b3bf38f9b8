package decisioning

import (
	"sort"

	"github.com/sportarr/sportarr/internal/indexer/types"
)

// Bonus folded into the total score for releases on the delay
// profile's preferred protocol. Half a quality rank step, so protocol
// preference breaks ties but never outranks a quality upgrade.
const protocolBonus = qualityRankWeight / 2

// SortReleases orders evaluated releases best-first: approved, then
// quality score, custom format score, seeders, and size score.
func SortReleases(releases []types.ReleaseSearchResult) {
	sort.SliceStable(releases, func(i, j int) bool {
		a, b := &releases[i], &releases[j]
		if a.Approved != b.Approved {
			return a.Approved
		}
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		if a.CustomFormatScore != b.CustomFormatScore {
			return a.CustomFormatScore > b.CustomFormatScore
		}
		if sa, sb := seederCount(a), seederCount(b); sa != sb {
			return sa > sb
		}
		return a.SizeScore > b.SizeScore
	})
}

// RankForGrab orders candidates for dispatch. The preferred-protocol
// bonus is folded into each total score first, then candidates sort by
// approval, total score, and seeders. Call once per slice; the bonus
// is cumulative.
func RankForGrab(releases []types.ReleaseSearchResult, delayProfile *DelayProfile) {
	if delayProfile != nil && delayProfile.PreferredProtocol != "" {
		for i := range releases {
			if releases[i].Protocol == delayProfile.PreferredProtocol {
				releases[i].Score += protocolBonus
			}
		}
	}
	sort.SliceStable(releases, func(i, j int) bool {
		a, b := &releases[i], &releases[j]
		if a.Approved != b.Approved {
			return a.Approved
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return seederCount(a) > seederCount(b)
	})
}

func seederCount(rel *types.ReleaseSearchResult) int {
	if rel.Seeders == nil {
		return 0
	}
	return *rel.Seeders
}
