package resolver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrap-render-server/modules/render"
)

var mustang = render.VehicleIdentity{Year: "2024", Make: "Ford", Model: "Mustang"}

func TestResolveVerifiedAverySwatch(t *testing.T) {
	sel := render.Swatch{Finish: render.Finish{
		DisplayName:     "Diamond Black",
		Hex:             "#101010",
		FinishTag:       "gloss",
		Library:         "avery_sw900",
		VerifiedMatch:   true,
		MaterialProfile: "avery-sw900-diamond-black",
	}}

	req, err := Resolve(sel, mustang, render.ModeColor, render.ViewHero, "")
	require.NoError(t, err)

	assert.Equal(t, "Avery Dennison", req.ColorData.Manufacturer)
	assert.Empty(t, req.ColorData.Hex)
	assert.Equal(t, "avery-sw900-diamond-black", req.ColorData.MaterialProfile)

	payload, err := json.Marshal(req.ColorData)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(payload, &fields))
	assert.NotContains(t, fields, "hex")
	assert.Contains(t, fields, "materialProfile")
}

func TestResolveVerifiedMatchExclusivity(t *testing.T) {
	libraries := []string{"avery_sw900", "3m_2080", "hexis_skintac", "kpmf", "unknown_lib", ""}

	for _, lib := range libraries {
		for _, verified := range []bool{true, false} {
			sel := render.Swatch{Finish: render.Finish{
				DisplayName:     "Test",
				Hex:             "abc123",
				Library:         lib,
				VerifiedMatch:   verified,
				MaterialProfile: "profile-1",
			}}

			req, err := Resolve(sel, mustang, render.ModeColor, render.ViewSide, "")
			require.NoError(t, err)

			if verified {
				assert.Empty(t, req.ColorData.Hex, "library %q", lib)
				assert.Equal(t, "profile-1", req.ColorData.MaterialProfile)
			} else {
				assert.Equal(t, "#ABC123", req.ColorData.Hex, "library %q", lib)
				assert.Empty(t, req.ColorData.MaterialProfile)
			}
		}
	}
}

func TestResolveRejects(t *testing.T) {
	swatch := render.Swatch{Finish: render.Finish{DisplayName: "Red", Hex: "#ff0000"}}

	tests := []struct {
		name    string
		sel     render.FinishSelection
		vehicle render.VehicleIdentity
		mode    render.Mode
		view    render.ViewType
		field   string
	}{
		{"missing model", swatch, render.VehicleIdentity{Year: "2024", Make: "Ford"}, render.ModeColor, "", "vehicle"},
		{"blank make", swatch, render.VehicleIdentity{Year: "2024", Make: "  ", Model: "Mustang"}, render.ModeColor, "", "vehicle"},
		{"unknown mode", swatch, mustang, render.Mode("neon"), "", "modeType"},
		{"unknown view", swatch, mustang, render.ModeColor, render.ViewType("under"), "viewType"},
		{"no selection", nil, mustang, render.ModeGraphic, "", "selection"},
		{"bad hex", render.Swatch{Finish: render.Finish{Hex: "red"}}, mustang, render.ModeColor, "", "hex"},
		{"verified without profile", render.Swatch{Finish: render.Finish{Hex: "#000", VerifiedMatch: true}}, mustang, render.ModeColor, "", "materialProfile"},
		{"pattern without image", render.Pattern{}, mustang, render.ModeGraphic, "", "patternUrl"},
		{"empty prompt", render.FreeTextStyle{Prompt: "  "}, mustang, render.ModeStylePrompt, "", "prompt"},
		{"empty composite", render.Composite{}, mustang, render.ModeMultiZone, "", "zones"},
		{"nested composite", render.Composite{Zones: []render.Zone{{Area: "roof", Selection: render.Composite{}}}}, mustang, render.ModeMultiZone, "", "zones[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.sel, tt.vehicle, tt.mode, tt.view, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, render.ErrValidation)

			var verr *render.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestResolveBaseVehicleWithoutSelection(t *testing.T) {
	req, err := Resolve(nil, mustang, render.ModeBaseVehicle, "", "  lower it  ")
	require.NoError(t, err)
	assert.Equal(t, "stock", req.ColorData.Kind)
	assert.Equal(t, render.ViewHero, req.View)
	assert.Equal(t, "lower it", req.RevisionPrompt)
}

func TestResolveGradient(t *testing.T) {
	sel := render.Gradient{
		Finish: render.Finish{DisplayName: "Sunset", Hex: "#ff5500", FinishTag: "gloss", Library: "oracal_970"},
		EndHex: "#5500ff",
	}

	req, err := Resolve(sel, mustang, render.ModeGradient, render.ViewSide, "")
	require.NoError(t, err)
	assert.Equal(t, "gradient", req.ColorData.Kind)
	assert.Equal(t, "#FF5500", req.ColorData.Hex)
	assert.Equal(t, "#5500FF", req.ColorData.EndHex)
	assert.Equal(t, "front_to_rear", req.ColorData.Direction)
	assert.Equal(t, "Orafol", req.ColorData.Manufacturer)
}

func TestResolveFreeTextStyle(t *testing.T) {
	sel := render.FreeTextStyle{Prompt: "Make it a satin chrome purple like the Avery wraps"}

	req, err := Resolve(sel, mustang, render.ModeStylePrompt, render.ViewHero, "")
	require.NoError(t, err)
	assert.Equal(t, "satin_chrome", req.ColorData.Finish)
	assert.Equal(t, "Avery Dennison", req.ColorData.Manufacturer)
	assert.Equal(t, "Satin Chrome Purple Avery", req.ColorData.StyleLabel)
	assert.Equal(t, sel.Prompt, req.ColorData.Prompt)
}

func TestResolveComposite(t *testing.T) {
	sel := render.Composite{
		DisplayName: "Two tone",
		Zones: []render.Zone{
			{Area: "body", Selection: render.Swatch{Finish: render.Finish{DisplayName: "White", Hex: "#fff", Library: "kpmf_k75400"}}},
			{Area: "roof", Selection: render.Swatch{Finish: render.Finish{
				DisplayName: "Gloss Black", Library: "3m_2080", VerifiedMatch: true, MaterialProfile: "3m-g12",
			}}},
		},
	}

	req, err := Resolve(sel, mustang, render.ModeMultiZone, render.ViewHero, "")
	require.NoError(t, err)
	require.Len(t, req.ColorData.Zones, 2)

	assert.Equal(t, "body", req.ColorData.Zones[0].Area)
	assert.Equal(t, "#FFF", req.ColorData.Zones[0].Hex)
	assert.Equal(t, "KPMF", req.ColorData.Zones[0].Manufacturer)
	assert.False(t, req.ColorData.Zones[0].IsVerifiedMatch)

	assert.Equal(t, "roof", req.ColorData.Zones[1].Area)
	assert.Empty(t, req.ColorData.Zones[1].Hex)
	assert.Equal(t, "3m-g12", req.ColorData.Zones[1].MaterialProfile)
	assert.Equal(t, "3M", req.ColorData.Zones[1].Manufacturer)
	assert.True(t, req.ColorData.Zones[1].IsVerifiedMatch)
}

func TestResolveImageFinishesForwardOptionalHex(t *testing.T) {
	pattern := render.Pattern{Finish: render.Finish{DisplayName: "Camo"}, PatternURL: "https://cdn/camo.png"}
	req, err := Resolve(pattern, mustang, render.ModeGraphic, render.ViewSide, "")
	require.NoError(t, err)
	assert.Empty(t, req.ColorData.Hex)
	assert.Empty(t, req.ColorData.MaterialProfile)
	assert.Equal(t, "https://cdn/camo.png", req.ColorData.PatternURL)

	pattern.Hex = "#00ff00"
	req, err = Resolve(pattern, mustang, render.ModeGraphic, render.ViewSide, "")
	require.NoError(t, err)
	assert.Equal(t, "#00FF00", req.ColorData.Hex)

	composite := render.Composite{Zones: []render.Zone{
		{Area: "hood", Selection: render.ReferenceImage{Finish: render.Finish{DisplayName: "Photo"}, ImageURL: "https://cdn/ref.jpg"}},
	}}
	req, err = Resolve(composite, mustang, render.ModeMultiZone, render.ViewHero, "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/ref.jpg", req.ColorData.Zones[0].ReferenceImageURL)
}

func TestResolveExplicitManufacturerWins(t *testing.T) {
	sel := render.Swatch{Finish: render.Finish{Hex: "#123456", Library: "avery_sw900", Manufacturer: "Private Label"}}

	req, err := Resolve(sel, mustang, render.ModeColor, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Private Label", req.ColorData.Manufacturer)
}
