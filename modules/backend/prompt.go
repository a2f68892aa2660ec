package backend

import (
	"fmt"
	"strings"

	"wrap-render-server/modules/render"
)

// BuildRenderPrompt - image prompt for one view of a wrapped vehicle
func BuildRenderPrompt(req render.GenerationRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Generate a photorealistic studio render of a %s.

CAMERA:
- View: %s
- %s

WRAP:
%s

CRITICAL REQUIREMENTS:
- The vehicle body, trim, wheels and glass must match the real %s exactly
- Only the painted body panels are wrapped; glass, tyres, lights and badges keep their stock look
- Seams, panel gaps and door handles follow the real panel layout
- Neutral grey studio backdrop with soft overhead lighting and a subtle floor reflection
- %s`,
		req.Vehicle,
		req.View.Label(), viewGuidance(req.View),
		describeWrap(req.ColorData),
		req.Vehicle,
		modeContext(req.Mode),
	)

	if req.RevisionPrompt != "" {
		target := "the design"
		if req.PreviousRenderURL != "" {
			target = "the attached previous render, keeping everything else identical"
		}
		fmt.Fprintf(&b, `

REVISION:
Apply this change to %s: "%s"`, target, req.RevisionPrompt)
	}

	b.WriteString("\n\nOUTPUT: Generate ONLY the image, no text or explanations.")
	return b.String()
}

// BuildInspectPrompt - asks a text model to grade a finished render
func BuildInspectPrompt(mode render.Mode) string {
	focus := "overall paint quality, reflections and panel coverage"
	if mode == render.ModeGradient {
		focus = "the gradient transition: any hard seam, step or visible edge line between the two colours is a defect"
	}

	return fmt.Sprintf(`Inspect this vehicle wrap render and grade its quality.

FOCUS: %s

SCORING:
- 5: flawless, indistinguishable from a real photo
- 4: minor issues only visible on close inspection
- 3: noticeable defects
- 1-2: obvious defects that ruin the render

OUTPUT FORMAT:
Return ONLY a JSON object: {"score": <1-5>, "hasHardLine": <true|false>}`, focus)
}

func viewGuidance(view render.ViewType) string {
	switch view {
	case render.ViewHero:
		return "Front three-quarter angle from the driver side, camera at headlight height, whole vehicle in frame"
	case render.ViewSide:
		return "Complete side profile, camera perpendicular to the doors, front and rear equally visible"
	case render.ViewRear:
		return "Rear three-quarter angle from the passenger side, tail lights and rear bumper clearly visible"
	case render.ViewTop:
		return "Top down view from directly above, roof, hood and trunk lid fully visible"
	case render.ViewFront:
		return "Straight-on front view, grille and headlights centred"
	case render.ViewDetail:
		return "Close-up on the wrapped surface of the front fender so the film texture is visible"
	default:
		return "Front three-quarter angle, whole vehicle in frame"
	}
}

func modeContext(mode render.Mode) string {
	switch mode {
	case render.ModeGraphic:
		return "Printed graphic context: keep the pattern scale consistent across panels and wrap it around body lines without distortion"
	case render.ModeGradient:
		return "Gradient context: the colour fade must be one continuous blend across every panel with no visible boundary"
	case render.ModeStylePrompt:
		return "Style context: interpret the requested style as a real, installable vinyl wrap"
	case render.ModeReference:
		return "Reference context: reproduce the look of the reference image on this vehicle"
	case render.ModeMultiZone:
		return "Multi-zone context: each zone has its own finish; zone boundaries follow panel edges"
	case render.ModeBaseVehicle:
		return "Stock context: show the vehicle in its factory paint"
	default:
		return "Colour change context: the film must look like a professionally installed full wrap"
	}
}

func describeWrap(cd render.ColorData) string {
	if cd.Kind == "stock" {
		return "- No wrap, factory paint"
	}

	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, "- "+fmt.Sprintf(format, args...))
	}

	if cd.Name != "" {
		add("Film: %s", cd.Name)
	}
	if cd.Manufacturer != "" {
		add("Manufacturer: %s", cd.Manufacturer)
	}
	if cd.MaterialProfile != "" {
		add("Verified material profile: %s (match the real film, do not approximate from a colour value)", cd.MaterialProfile)
	}
	if cd.Hex != "" {
		add("Colour: %s", cd.Hex)
	}
	if cd.EndHex != "" {
		add("Fades to %s, direction %s", cd.EndHex, strings.ReplaceAll(cd.Direction, "_", " "))
	}
	if cd.Finish != "" {
		add("Finish: %s", cd.Finish)
	}
	if cd.PatternURL != "" {
		add("Pattern: the attached pattern image, printed on the film")
	}
	if cd.Prompt != "" {
		add("Requested style: %s", cd.Prompt)
	}
	if cd.ReferenceImageURL != "" {
		add("Reference: reproduce the finish shown in the attached reference photo")
	}
	for _, z := range cd.Zones {
		add("Zone %s: %s", z.Area, describeZone(z))
	}

	if len(lines) == 0 {
		return "- Custom wrap"
	}
	return strings.Join(lines, "\n")
}

func describeZone(z render.ZoneData) string {
	var parts []string
	for _, v := range []string{z.Name, z.Manufacturer, z.MaterialProfile, z.Hex, z.Finish} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	if z.PatternURL != "" {
		parts = append(parts, "attached "+z.Area+" pattern image")
	}
	if z.ReferenceImageURL != "" {
		parts = append(parts, "attached "+z.Area+" reference photo")
	}
	if len(parts) == 0 {
		return "custom"
	}
	return strings.Join(parts, ", ")
}
