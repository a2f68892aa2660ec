package resolver

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxLabelWords = 4

// Style - label and tags pulled out of a free text description
type Style struct {
	Label        string
	Finish       string
	Manufacturer string
}

var fillerWords = map[string]bool{
	"a": true, "an": true, "the": true, "make": true, "it": true, "my": true,
	"car": true, "truck": true, "vehicle": true, "wrap": true, "wrapped": true,
	"in": true, "with": true, "please": true, "want": true, "i": true, "like": true,
	"some": true, "and": true, "of": true, "to": true, "look": true, "style": true,
}

// ExtractStyle derives a short label, a finish tag and a manufacturer from
// user text. Deterministic: the same prompt always yields the same Style.
func ExtractStyle(prompt string) Style {
	style := Style{
		Finish:       Match(FinishTable, prompt),
		Manufacturer: Match(ManufacturerTable, prompt),
	}

	words := strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	var kept []string
	for _, w := range words {
		if fillerWords[w] {
			continue
		}
		kept = append(kept, w)
		if len(kept) == maxLabelWords {
			break
		}
	}

	if len(kept) == 0 {
		style.Label = "Custom Style"
		return style
	}
	// a Caser holds state, so one per call
	style.Label = cases.Title(language.Und).String(strings.Join(kept, " "))
	return style
}
