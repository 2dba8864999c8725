package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Metadata is what the filename tells us about a manual: the product family,
// model year and model name. Manuals follow naming like
// "OM_Monster-937_MY23_EN_ED01.pdf".
type Metadata struct {
	Family       string `json:"family"`
	Year         string `json:"year"`
	Model        string `json:"model"`
	OriginalName string `json:"original_name"`
}

var yearPattern = regexp.MustCompile(`MY([0-9]{2})`)

// ExtractMetadata derives metadata from a PDF filename using the configured
// family list and cleanup patterns. Unknown families leave Family empty; the
// cleaned filename still serves as the model name.
func ExtractMetadata(name string, families, cleanupPatterns []string) Metadata {
	meta := Metadata{OriginalName: name}

	cleaned := name
	if m := yearPattern.FindStringSubmatch(cleaned); m != nil {
		yy, _ := strconv.Atoi(m[1])
		century := "20"
		if yy > 50 {
			century = "19"
		}
		meta.Year = century + m[1]
		cleaned = strings.Replace(cleaned, m[0], "", 1)
	}

	for _, p := range cleanupPatterns {
		cleaned = strings.ReplaceAll(cleaned, p, "")
	}
	cleaned = strings.TrimSpace(cleaned)

	for _, f := range families {
		if strings.Contains(cleaned, f) {
			meta.Family = f
			break
		}
	}

	meta.Model = cleaned
	return meta
}
