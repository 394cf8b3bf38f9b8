package matching

import "testing"

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"UFC 310: Pantoja vs. Asakura", "ufc 310 pantoja vs asakura"},
		{"Grand Prix de Monaco", "grand prix de monaco"},
		{"Sao Paulo / São Paulo", "sao paulo sao paulo"},
		{"Schitt's Creek", "schitts creek"},
		{"  spaced   out  ", "spaced out"},
	}

	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenizeDropsStopwords(t *testing.T) {
	tokens := Tokenize("Lakers vs. the Warriors 1080p WEB-DL")
	want := []string{"lakers", "warriors"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("tokens = %v, want %v", tokens, want)
		}
	}
}

func TestExpandAliases(t *testing.T) {
	got := ExpandAliases("Abu Dhabi")
	found := false
	for _, a := range got {
		if a == "yasmarina" {
			found = true
		}
	}
	if !found {
		t.Errorf("ExpandAliases(Abu Dhabi) = %v, missing yasmarina", got)
	}

	got = ExpandAliases("unaliased term")
	if len(got) != 1 || got[0] != "unaliased term" {
		t.Errorf("ExpandAliases(unaliased) = %v", got)
	}
}

func TestExpandTokensMultiWordAliases(t *testing.T) {
	set := ExpandTokens("Abu Dhabi Grand Prix")

	for _, want := range []string{"abudhabi", "yasmarina", "gp", "grandprix"} {
		if !set[want] {
			t.Errorf("expanded set missing %q", want)
		}
	}
}

func TestContainsTerm(t *testing.T) {
	set := ExpandTokens("Formula1.2025.Round24.AbuDhabi.Race.1080p")

	if !ContainsTerm(set, "Abu Dhabi") {
		t.Error("AbuDhabi release should contain term Abu Dhabi")
	}
	if !ContainsTerm(set, "Yas Marina") {
		t.Error("AbuDhabi release should contain alias Yas Marina")
	}
	if ContainsTerm(set, "Qatar") {
		t.Error("AbuDhabi release should not contain Qatar")
	}
	if ContainsTerm(set, "") {
		t.Error("empty term should never match")
	}
}
