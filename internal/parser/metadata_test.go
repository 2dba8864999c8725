package parser

import "testing"

var (
	testFamilies = []string{"Monster", "Multistrada", "Panigale", "Scrambler"}
	testPatterns = []string{"OM", "_", ".pdf", "-", "EN", "ED00", "ED01", "Rev01"}
)

func TestExtractMetadata(t *testing.T) {
	cases := []struct {
		name   string
		family string
		year   string
		model  string
	}{
		{"OM_Monster-937_MY23_EN_ED01.pdf", "Monster", "2023", "Monster937"},
		{"OM_Panigale-V4_MY99_EN.pdf", "Panigale", "1999", "PanigaleV4"},
		{"OM_Multistrada_EN_ED00.pdf", "Multistrada", "", "Multistrada"},
	}
	for _, c := range cases {
		got := ExtractMetadata(c.name, testFamilies, testPatterns)
		if got.Family != c.family {
			t.Errorf("%s: expected family %q, got %q", c.name, c.family, got.Family)
		}
		if got.Year != c.year {
			t.Errorf("%s: expected year %q, got %q", c.name, c.year, got.Year)
		}
		if got.Model != c.model {
			t.Errorf("%s: expected model %q, got %q", c.name, c.model, got.Model)
		}
		if got.OriginalName != c.name {
			t.Errorf("%s: original name not preserved: %q", c.name, got.OriginalName)
		}
	}
}

func TestExtractMetadataUnknownFamily(t *testing.T) {
	got := ExtractMetadata("OM_Hyperstrada_MY14.pdf", testFamilies, testPatterns)
	if got.Family != "" {
		t.Fatalf("expected empty family, got %q", got.Family)
	}
	if got.Year != "2014" {
		t.Fatalf("expected year 2014, got %q", got.Year)
	}
	if got.Model == "" {
		t.Fatal("expected cleaned name as model fallback")
	}
}
