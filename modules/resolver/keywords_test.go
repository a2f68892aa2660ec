package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPrecedence(t *testing.T) {
	table := []KeywordRule{
		{"ab", "first-short"},
		{"abc", "long"},
		{"xy", "tie-early"},
		{"yz", "tie-late"},
	}

	assert.Equal(t, "long", Match(table, "ABCD"), "longest keyword wins")
	assert.Equal(t, "tie-early", Match(table, "xyz"), "equal length goes to the earlier row")
	assert.Equal(t, "first-short", Match(table, "zab"))
	assert.Equal(t, "", Match(table, "nothing"))
	assert.Equal(t, "", Match(table, ""))
}

func TestManufacturerInference(t *testing.T) {
	tests := []struct {
		library string
		want    string
	}{
		{"avery_sw900", "Avery Dennison"},
		{"Avery Dennison Supreme Wrapping Film", "Avery Dennison"},
		{"3M_2080_G12", "3M"},
		{"oracal-970ra", "Orafol"},
		{"hexis_skintac", "Hexis"},
		{"inozetek_super_gloss", "Inozetek"},
		{"teckwrap_cmw", "TeckWrap"},
		{"suntek_ppf", "SunTek"},
		{"house_colors", ""},
	}

	for _, tt := range tests {
		t.Run(tt.library, func(t *testing.T) {
			assert.Equal(t, tt.want, Manufacturer("", tt.library))
		})
	}
}

func TestExtractStyle(t *testing.T) {
	tests := []struct {
		prompt string
		want   Style
	}{
		{
			prompt: "matte frozen blue with carbon accents",
			want:   Style{Label: "Matte Frozen Blue Carbon", Finish: "carbon_fiber"},
		},
		{
			prompt: "Glossy Avery red",
			want:   Style{Label: "Glossy Avery Red", Finish: "gloss", Manufacturer: "Avery Dennison"},
		},
		{
			prompt: "a color shift chameleon wrap",
			want:   Style{Label: "Color Shift Chameleon", Finish: "color_shift"},
		},
		{
			prompt: "make it the car",
			want:   Style{Label: "Custom Style"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			got := ExtractStyle(tt.prompt)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, ExtractStyle(tt.prompt))
		})
	}
}
