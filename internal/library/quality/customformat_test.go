package quality

import "testing"

func TestCustomFormatRequired(t *testing.T) {
	f := CustomFormat{
		Name: "German WEB",
		Specifications: []Specification{
			{Type: SpecLanguage, Value: "German", Required: true},
			{Type: SpecSource, Value: "webdl"},
			{Type: SpecSource, Value: "webrip"},
		},
	}

	in := FormatInput{Language: "German", Source: "webdl"}
	if !f.Matches(in) {
		t.Error("required + one optional matched, format should apply")
	}

	in.Language = "English"
	if f.Matches(in) {
		t.Error("required spec failed, format should not apply")
	}

	in = FormatInput{Language: "German", Source: "bluray"}
	if f.Matches(in) {
		t.Error("no optional spec matched, format should not apply")
	}
}

func TestCustomFormatNegate(t *testing.T) {
	f := CustomFormat{
		Name: "Not x265",
		Specifications: []Specification{
			{Type: SpecCodec, Value: "x265", Negate: true, Required: true},
		},
	}

	if !f.Matches(FormatInput{Codec: "x264"}) {
		t.Error("negated spec should match x264")
	}
	if f.Matches(FormatInput{Codec: "x265"}) {
		t.Error("negated spec should reject x265")
	}
}

func TestCustomFormatTitleRegex(t *testing.T) {
	f := CustomFormat{
		Name: "Repack",
		Specifications: []Specification{
			{Type: SpecReleaseTitle, Value: `\brepack\b`},
		},
	}

	if !f.Matches(FormatInput{Title: "UFC.310.REPACK.1080p"}) {
		t.Error("case-insensitive title regex should match")
	}
	if f.Matches(FormatInput{Title: "UFC.310.1080p"}) {
		t.Error("title without token matched")
	}
}

func TestCustomFormatSizeRange(t *testing.T) {
	f := CustomFormat{
		Name: "Midsize",
		Specifications: []Specification{
			{Type: SpecSizeRange, MinSizeMB: 1000, MaxSizeMB: 10000},
		},
	}

	const mb = int64(1024 * 1024)
	if f.Matches(FormatInput{SizeBytes: 500 * mb}) {
		t.Error("undersized release matched")
	}
	if !f.Matches(FormatInput{SizeBytes: 5000 * mb}) {
		t.Error("in-range release not matched")
	}
	if f.Matches(FormatInput{SizeBytes: 20000 * mb}) {
		t.Error("oversized release matched")
	}
}

func TestCustomFormatIndexerFlag(t *testing.T) {
	f := CustomFormat{
		Name: "Freeleech",
		Specifications: []Specification{
			{Type: SpecIndexerFlag, Value: "freeleech"},
		},
	}

	if !f.Matches(FormatInput{IndexerFlags: []string{"internal", "Freeleech"}}) {
		t.Error("flag match is case-insensitive")
	}
	if f.Matches(FormatInput{IndexerFlags: []string{"internal"}}) {
		t.Error("missing flag matched")
	}
}

func TestCustomFormatEmpty(t *testing.T) {
	f := CustomFormat{Name: "Empty"}
	if f.Matches(FormatInput{Title: "anything"}) {
		t.Error("format with no specifications should never match")
	}
}

func TestSpecsRoundTrip(t *testing.T) {
	specs := []Specification{
		{Type: SpecResolution, Value: "1080", Required: true},
		{Type: SpecReleaseGroup, Value: "GRP", Negate: true},
	}

	data, err := SerializeSpecs(specs)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := DeserializeSpecs(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if len(got) != 2 || got[0].Type != SpecResolution || !got[1].Negate {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
