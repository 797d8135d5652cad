package service

import (
	"regexp"
	"strings"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	punctRegex      = regexp.MustCompile(`[.,;:!?'"()]`)
)

// companySuffixes are stripped when comparing company names so that
// "Acme Corp" and "Acme Corporation" normalize to the same key.
var companySuffixes = []string{
	"incorporated", "corporation", "company", "limited",
	"inc", "llc", "ltd", "corp", "gmbh", "plc", "co",
}

// sanitizeString collapses whitespace and trims the result.
func sanitizeString(value string) string {
	value = whitespaceRegex.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// normalizeName lowercases a name and strips punctuation for comparisons.
func normalizeName(value string) string {
	value = strings.ToLower(sanitizeString(value))
	value = punctRegex.ReplaceAllString(value, "")
	return sanitizeString(value)
}

// normalizeCompany lowercases a company name and strips legal suffixes.
func normalizeCompany(value string) string {
	value = normalizeName(value)
	if value == "" {
		return ""
	}
	words := strings.Fields(value)
	for len(words) > 1 && isCompanySuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isCompanySuffix(word string) bool {
	for _, s := range companySuffixes {
		if word == s {
			return true
		}
	}
	return false
}

// nameVariants generates the comparison forms of a person name used by the
// exact-match tier: first+last, last-first, and initial forms.
func nameVariants(name string) []string {
	base := normalizeName(name)
	if base == "" {
		return nil
	}
	variants := []string{base}
	parts := strings.Fields(base)
	if len(parts) < 2 {
		return variants
	}
	first, last := parts[0], parts[len(parts)-1]
	variants = append(variants,
		first+" "+last,
		last+" "+first,
		first[:1]+" "+last,
		first+" "+last[:1],
	)
	return dedupeStrings(variants)
}

// surname extracts the family-name grouping key; single-token names yield "".
func surname(name string) string {
	parts := strings.Fields(normalizeName(name))
	if len(parts) < 2 {
		return ""
	}
	last := parts[len(parts)-1]
	if len(last) < 2 {
		return ""
	}
	return last
}

// tokenize splits a normalized string into comparison tokens.
func tokenize(value string) []string {
	return strings.Fields(normalizeName(value))
}

// tokenMatchFraction returns the fraction of query tokens that substring-match
// the candidate string.
func tokenMatchFraction(queryTokens []string, candidate string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	target := normalizeName(candidate)
	if target == "" {
		return 0
	}
	matched := 0
	for _, tok := range queryTokens {
		if strings.Contains(target, tok) {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// degreeLevel maps a free-text degree to a comparable level; zero means
// unknown and is never treated as a mismatch.
func degreeLevel(degree string) int {
	d := normalizeName(degree)
	switch {
	case strings.Contains(d, "phd") || strings.Contains(d, "doctor"):
		return 4
	case strings.Contains(d, "mba") || strings.Contains(d, "master") || strings.HasPrefix(d, "ms") || strings.HasPrefix(d, "ma "):
		return 3
	case strings.Contains(d, "bachelor") || strings.HasPrefix(d, "bs") || strings.HasPrefix(d, "ba ") || d == "ba":
		return 2
	case strings.Contains(d, "associate"):
		return 1
	default:
		return 0
	}
}

// yearsOverlap returns the number of whole years two [start,end] ranges share.
// A zero end year means the engagement is ongoing.
func yearsOverlap(aStart, aEnd, bStart, bEnd, currentYear int) int {
	if aStart == 0 || bStart == 0 {
		return 0
	}
	if aEnd == 0 {
		aEnd = currentYear
	}
	if bEnd == 0 {
		bEnd = currentYear
	}
	lo := aStart
	if bStart > lo {
		lo = bStart
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
