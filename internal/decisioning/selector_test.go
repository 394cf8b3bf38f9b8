package decisioning

import (
	"testing"

	"github.com/sportarr/sportarr/internal/indexer/types"
)

func TestRankForGrabPrefersProtocol(t *testing.T) {
	releases := []types.ReleaseSearchResult{
		{GUID: "t", Approved: true, Score: 700, Protocol: types.ProtocolTorrent},
		{GUID: "u", Approved: true, Score: 700, Protocol: types.ProtocolUsenet},
	}
	RankForGrab(releases, &DelayProfile{PreferredProtocol: types.ProtocolUsenet})

	if releases[0].GUID != "u" {
		t.Errorf("first = %q, want the usenet release", releases[0].GUID)
	}
	if releases[0].Score != 700+protocolBonus {
		t.Errorf("bonus not applied: score = %d", releases[0].Score)
	}
	if releases[1].Score != 700 {
		t.Errorf("non-preferred score changed: %d", releases[1].Score)
	}
}

func TestRankForGrabBonusBelowQualityStep(t *testing.T) {
	// A full quality rank step still beats the protocol bonus.
	releases := []types.ReleaseSearchResult{
		{GUID: "preferred", Approved: true, Score: 700, Protocol: types.ProtocolUsenet},
		{GUID: "better", Approved: true, Score: 700 + qualityRankWeight, Protocol: types.ProtocolTorrent},
	}
	RankForGrab(releases, &DelayProfile{PreferredProtocol: types.ProtocolUsenet})

	if releases[0].GUID != "better" {
		t.Errorf("first = %q, want the higher-quality release", releases[0].GUID)
	}
}

func TestRankForGrabApprovedFirst(t *testing.T) {
	releases := []types.ReleaseSearchResult{
		{GUID: "rejected", Approved: false, Score: 2000},
		{GUID: "approved", Approved: true, Score: 100},
	}
	RankForGrab(releases, nil)

	if releases[0].GUID != "approved" {
		t.Errorf("first = %q, want the approved release", releases[0].GUID)
	}
}
