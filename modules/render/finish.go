package render

// FinishSelection is the closed set of finishes a user can pick or upload.
// The unexported marker keeps the variant list inside this package so the
// resolver's type switch stays exhaustive.
type FinishSelection interface {
	finishKind() string
}

// Finish - fields shared by every concrete finish variant
type Finish struct {
	DisplayName     string `json:"displayName"`
	Hex             string `json:"hex,omitempty"`
	FinishTag       string `json:"finish,omitempty"`
	Library         string `json:"library,omitempty"`
	Manufacturer    string `json:"manufacturer,omitempty"`
	VerifiedMatch   bool   `json:"isVerifiedMatch,omitempty"`
	MaterialProfile string `json:"materialProfile,omitempty"`
}

// Swatch - a solid color picked from a library
type Swatch struct {
	Finish
}

// Pattern - a printed graphic tiled over the body
type Pattern struct {
	Finish
	PatternURL string  `json:"patternUrl"`
	Scale      float64 `json:"scale,omitempty"`
}

// Gradient - a two color fade
type Gradient struct {
	Finish
	EndHex    string `json:"endHex"`
	Direction string `json:"direction,omitempty"`
}

// FreeTextStyle - unstructured style description
type FreeTextStyle struct {
	Prompt string `json:"prompt"`
}

// ReferenceImage - uploaded photo of the desired finish
type ReferenceImage struct {
	Finish
	ImageURL string `json:"imageUrl"`
}

// Zone - one body area of a composite design
type Zone struct {
	Area      string          `json:"area"`
	Selection FinishSelection `json:"-"`
}

// Composite - several finishes applied to named zones
type Composite struct {
	DisplayName string `json:"displayName,omitempty"`
	Zones       []Zone `json:"zones"`
}

func (Swatch) finishKind() string         { return "swatch" }
func (Pattern) finishKind() string        { return "pattern" }
func (Gradient) finishKind() string       { return "gradient" }
func (FreeTextStyle) finishKind() string  { return "free_text" }
func (ReferenceImage) finishKind() string { return "reference_image" }
func (Composite) finishKind() string      { return "composite" }

// KindOf returns the wire tag of a selection, empty for nil.
func KindOf(sel FinishSelection) string {
	if sel == nil {
		return ""
	}
	return sel.finishKind()
}
