package sanitizer

import "github.com/samber/lo"

// NormalizeStringSlice normalizes every item, dropping blanks and later duplicates.
// The result is never nil so it encodes as an empty array.
func NormalizeStringSlice(items []string, normalizer func(string) string) []string {
	normalized := lo.Map(items, func(item string, _ int) string { return normalizer(item) })
	return lo.Uniq(lo.Compact(normalized))
}

// NormalizeDates cleans an explicit schedule date list.
func NormalizeDates(dates []string) []string {
	return NormalizeStringSlice(dates, TrimAndNormalize)
}

func NormalizeAnnouncements(lines []string) []string {
	return NormalizeStringSlice(lines, TrimAndNormalize)
}
