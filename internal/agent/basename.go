package agent

import (
	"regexp"
	"strings"
)

// Patterns stripped from full product names to get a searchable base name.
// They cover dosages (5mg, 1mg/ml), pack sizes, pharmaceutical forms, and
// storefront suffixes like "- Caixa com 30".
var baseNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+\d+(\.\d+)?(mg|g|mcg|ui|ml|l)(/\w+)?`),
	regexp.MustCompile(`(?i)\s+-\s+Caixa.*`),
	regexp.MustCompile(`(?i)\s+com\s+\d+\s+.*`),
	regexp.MustCompile(`(?i)\s+\d+\s+(Cápsulas|Comprimidos|Drágeas|Seringas|Envelopes)\b.*`),
	regexp.MustCompile(`(?i)\s+(Gotas|Xarope|Solução Oral|Suspensão nasal|Pomada|Creme|Gel)\b.*`),
	regexp.MustCompile(`(?i)\s+\(Refil\)`),
	regexp.MustCompile(`(?i)\s+FPS\s*\d+`),
	regexp.MustCompile(`(?i)\s+-\s+\d+\s+.*`),
}

// BaseName simplifies a full product name for search queries: dosage,
// quantity, and form suffixes are stripped and the brand is appended when
// not already present. Falls back to the full name when stripping leaves
// too little behind.
func BaseName(fullName, brand string) string {
	base := fullName
	for _, re := range baseNamePatterns {
		base = re.ReplaceAllString(base, "")
	}
	base = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(base), "-"))

	if brand != "" && !strings.Contains(strings.ToLower(base), strings.ToLower(brand)) {
		base = base + " " + brand
	}

	if len(base) > 3 {
		return base
	}
	return fullName
}
