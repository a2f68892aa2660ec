package resolver

import "strings"

// KeywordRule - one row of an ordered lookup table. Value is emitted when
// Keyword occurs in the lower-cased input.
type KeywordRule struct {
	Keyword string
	Value   string
}

// ManufacturerTable maps library identifiers onto film manufacturers.
// Longer keywords beat shorter ones; equal lengths resolve to the earlier row.
var ManufacturerTable = []KeywordRule{
	{"avery dennison", "Avery Dennison"},
	{"avery", "Avery Dennison"},
	{"supreme wrapping", "Avery Dennison"},
	{"3m", "3M"},
	{"2080", "3M"},
	{"1080", "3M"},
	{"hexis", "Hexis"},
	{"oracal", "Orafol"},
	{"orafol", "Orafol"},
	{"kpmf", "KPMF"},
	{"inozetek", "Inozetek"},
	{"teckwrap", "TeckWrap"},
	{"vvivid", "VViViD"},
	{"arlon", "Arlon"},
	{"xpel", "XPEL"},
	{"stek", "STEK"},
	{"suntek", "SunTek"},
}

// FinishTable maps style words onto finish tags.
var FinishTable = []KeywordRule{
	{"satin chrome", "satin_chrome"},
	{"color shift", "color_shift"},
	{"colour shift", "color_shift"},
	{"color flip", "color_shift"},
	{"chameleon", "color_shift"},
	{"brushed", "brushed_metal"},
	{"carbon", "carbon_fiber"},
	{"chrome", "chrome"},
	{"metallic", "metallic"},
	{"pearl", "pearlescent"},
	{"satin", "satin"},
	{"matte", "matte"},
	{"matt", "matte"},
	{"frozen", "matte"},
	{"gloss", "gloss"},
	{"glossy", "gloss"},
}

// Match returns the value of the best rule for text, empty when nothing matches.
func Match(table []KeywordRule, text string) string {
	haystack := strings.ToLower(text)
	if haystack == "" {
		return ""
	}

	best := -1
	for i, rule := range table {
		if !strings.Contains(haystack, rule.Keyword) {
			continue
		}
		if best < 0 || len(rule.Keyword) > len(table[best].Keyword) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return table[best].Value
}

// Manufacturer - explicit value wins, else inferred from the library id
func Manufacturer(explicit, library string) string {
	if m := strings.TrimSpace(explicit); m != "" {
		return m
	}
	return Match(ManufacturerTable, library)
}
