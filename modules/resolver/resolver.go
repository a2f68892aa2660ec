package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"wrap-render-server/modules/render"
)

var hexPattern = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Resolve turns a finish selection and vehicle into the payload of one view
// call. It has no side effects; invalid input returns a *render.ValidationError.
func Resolve(
	sel render.FinishSelection,
	vehicle render.VehicleIdentity,
	mode render.Mode,
	view render.ViewType,
	revision string,
) (render.GenerationRequest, error) {
	vehicle = render.VehicleIdentity{
		Year:  strings.TrimSpace(vehicle.Year),
		Make:  strings.TrimSpace(vehicle.Make),
		Model: strings.TrimSpace(vehicle.Model),
	}
	if !vehicle.Complete() {
		return render.GenerationRequest{}, render.NewValidationError("vehicle", "year, make and model are required")
	}
	if !mode.Valid() {
		return render.GenerationRequest{}, render.NewValidationError("modeType", fmt.Sprintf("unknown mode %q", mode))
	}
	if view == "" {
		view = render.ViewHero
	}
	if !view.Valid() {
		return render.GenerationRequest{}, render.NewValidationError("viewType", fmt.Sprintf("unknown view %q", view))
	}
	if sel == nil && mode.RequiresSelection() {
		return render.GenerationRequest{}, render.NewValidationError("selection", fmt.Sprintf("a finish is required for %s", mode))
	}

	colorData := render.ColorData{Kind: "stock"}
	if sel != nil {
		resolved, err := resolveSelection(sel)
		if err != nil {
			return render.GenerationRequest{}, err
		}
		colorData = resolved
	}

	return render.GenerationRequest{
		Vehicle:        vehicle,
		ColorData:      colorData,
		Mode:           mode,
		View:           view,
		RevisionPrompt: strings.TrimSpace(revision),
	}, nil
}

func resolveSelection(sel render.FinishSelection) (render.ColorData, error) {
	switch s := sel.(type) {
	case render.Swatch:
		return fromFinish(render.KindOf(s), s.Finish, true)

	case render.Pattern:
		if strings.TrimSpace(s.PatternURL) == "" {
			return render.ColorData{}, render.NewValidationError("patternUrl", "a pattern image is required")
		}
		cd, err := fromFinish(render.KindOf(s), s.Finish, false)
		if err != nil {
			return render.ColorData{}, err
		}
		cd.PatternURL = s.PatternURL
		cd.PatternScale = s.Scale
		return cd, nil

	case render.Gradient:
		cd, err := fromFinish(render.KindOf(s), s.Finish, true)
		if err != nil {
			return render.ColorData{}, err
		}
		end, err := normalizeHex("endHex", s.EndHex)
		if err != nil {
			return render.ColorData{}, err
		}
		cd.EndHex = end
		cd.Direction = s.Direction
		if cd.Direction == "" {
			cd.Direction = "front_to_rear"
		}
		return cd, nil

	case render.FreeTextStyle:
		prompt := strings.TrimSpace(s.Prompt)
		if prompt == "" {
			return render.ColorData{}, render.NewValidationError("prompt", "describe the style you want")
		}
		style := ExtractStyle(prompt)
		return render.ColorData{
			Kind:         render.KindOf(s),
			Name:         style.Label,
			Prompt:       prompt,
			StyleLabel:   style.Label,
			Finish:       style.Finish,
			Manufacturer: style.Manufacturer,
		}, nil

	case render.ReferenceImage:
		if strings.TrimSpace(s.ImageURL) == "" {
			return render.ColorData{}, render.NewValidationError("referenceImageUrl", "a reference image is required")
		}
		cd, err := fromFinish(render.KindOf(s), s.Finish, false)
		if err != nil {
			return render.ColorData{}, err
		}
		cd.ReferenceImageURL = s.ImageURL
		return cd, nil

	case render.Composite:
		return resolveComposite(s)

	default:
		return render.ColorData{}, render.NewValidationError("selection", fmt.Sprintf("unsupported finish %T", sel))
	}
}

func resolveComposite(c render.Composite) (render.ColorData, error) {
	if len(c.Zones) == 0 {
		return render.ColorData{}, render.NewValidationError("zones", "at least one zone is required")
	}

	out := render.ColorData{Kind: render.KindOf(c), Name: c.DisplayName}
	for i, zone := range c.Zones {
		field := fmt.Sprintf("zones[%d]", i)
		if strings.TrimSpace(zone.Area) == "" {
			return render.ColorData{}, render.NewValidationError(field, "area is required")
		}
		if zone.Selection == nil {
			return render.ColorData{}, render.NewValidationError(field, "a finish is required")
		}
		if _, nested := zone.Selection.(render.Composite); nested {
			return render.ColorData{}, render.NewValidationError(field, "zones cannot be nested")
		}

		resolved, err := resolveSelection(zone.Selection)
		if err != nil {
			return render.ColorData{}, err
		}
		out.Zones = append(out.Zones, render.ZoneData{
			Area:              strings.TrimSpace(zone.Area),
			Name:              resolved.Name,
			Hex:               resolved.Hex,
			Finish:            resolved.Finish,
			Manufacturer:      resolved.Manufacturer,
			MaterialProfile:   resolved.MaterialProfile,
			IsVerifiedMatch:   resolved.IsVerifiedMatch,
			PatternURL:        resolved.PatternURL,
			ReferenceImageURL: resolved.ReferenceImageURL,
		})
	}
	return out, nil
}

// fromFinish applies the verified match rule: a verified finish forwards its
// material profile and never its raw color, an unverified one the reverse.
// Image-borne finishes (pattern, reference) pass colorRequired=false: their
// color lives in the image, so a hex is forwarded only when one was given.
func fromFinish(kind string, f render.Finish, colorRequired bool) (render.ColorData, error) {
	cd := render.ColorData{
		Kind:            kind,
		Name:            strings.TrimSpace(f.DisplayName),
		Finish:          f.FinishTag,
		Library:         f.Library,
		Manufacturer:    Manufacturer(f.Manufacturer, f.Library),
		IsVerifiedMatch: f.VerifiedMatch,
	}

	if f.VerifiedMatch {
		profile := strings.TrimSpace(f.MaterialProfile)
		if profile == "" {
			return render.ColorData{}, render.NewValidationError("materialProfile", "verified finishes need a material profile")
		}
		cd.MaterialProfile = profile
		return cd, nil
	}

	if f.Hex == "" && !colorRequired {
		return cd, nil
	}
	hex, err := normalizeHex("hex", f.Hex)
	if err != nil {
		return render.ColorData{}, err
	}
	cd.Hex = hex
	return cd, nil
}

func normalizeHex(field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !hexPattern.MatchString(raw) {
		return "", render.NewValidationError(field, fmt.Sprintf("invalid color %q", raw))
	}
	return "#" + strings.ToUpper(strings.TrimPrefix(raw, "#")), nil
}
