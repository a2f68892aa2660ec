package render

import (
	"strings"
	"time"
)

// VehicleIdentity - year/make/model of the vehicle being wrapped
type VehicleIdentity struct {
	Year  string `json:"year"`
	Make  string `json:"make"`
	Model string `json:"model"`
}

// Complete reports whether all three identity fields are present.
func (v VehicleIdentity) Complete() bool {
	return strings.TrimSpace(v.Year) != "" &&
		strings.TrimSpace(v.Make) != "" &&
		strings.TrimSpace(v.Model) != ""
}

func (v VehicleIdentity) String() string {
	return strings.TrimSpace(v.Year + " " + v.Make + " " + v.Model)
}

// Mode - product flow that issued a request (sent as modeType)
type Mode string

const (
	ModeColor       Mode = "color"
	ModeGraphic     Mode = "graphic"
	ModeGradient    Mode = "gradient"
	ModeStylePrompt Mode = "style_prompt"
	ModeReference   Mode = "reference"
	ModeMultiZone   Mode = "multi_zone"
	ModeBaseVehicle Mode = "base_vehicle"
)

var knownModes = map[Mode]bool{
	ModeColor:       true,
	ModeGraphic:     true,
	ModeGradient:    true,
	ModeStylePrompt: true,
	ModeReference:   true,
	ModeMultiZone:   true,
	ModeBaseVehicle: true,
}

// Valid reports whether the mode is one of the known product flows.
func (m Mode) Valid() bool {
	return knownModes[m]
}

// RequiresSelection - every flow except the stock vehicle preview needs a finish
func (m Mode) RequiresSelection() bool {
	return m != ModeBaseVehicle
}

// PromptDriven reports whether the finish comes from unstructured user text.
func (m Mode) PromptDriven() bool {
	return m == ModeStylePrompt
}

// ViewType - one camera angle of a vehicle render
type ViewType string

const (
	ViewHero   ViewType = "hero"
	ViewSide   ViewType = "side"
	ViewRear   ViewType = "rear"
	ViewTop    ViewType = "top"
	ViewFront  ViewType = "front"
	ViewDetail ViewType = "detail"
)

// DefaultViews - hero first, then the batch dispatched after it
var DefaultViews = []ViewType{ViewHero, ViewSide, ViewRear, ViewTop}

var viewLabels = map[ViewType]string{
	ViewHero:   "Hero",
	ViewSide:   "Side Profile",
	ViewRear:   "Rear 3/4",
	ViewTop:    "Top Down",
	ViewFront:  "Front",
	ViewDetail: "Close-up",
}

// Label - human readable name used in notifications
func (v ViewType) Label() string {
	if label, ok := viewLabels[v]; ok {
		return label
	}
	return string(v)
}

// Valid reports whether the view is a known camera angle.
func (v ViewType) Valid() bool {
	_, ok := viewLabels[v]
	return ok
}

// ZoneData - one resolved area of a multi-zone design
type ZoneData struct {
	Area              string `json:"area"`
	Name              string `json:"name,omitempty"`
	Hex               string `json:"hex,omitempty"`
	Finish            string `json:"finish,omitempty"`
	Manufacturer      string `json:"manufacturer,omitempty"`
	MaterialProfile   string `json:"materialProfile,omitempty"`
	IsVerifiedMatch   bool   `json:"isVerifiedMatch,omitempty"`
	PatternURL        string `json:"patternUrl,omitempty"`
	ReferenceImageURL string `json:"referenceImageUrl,omitempty"`
}

// ColorData - resolved finish fields forwarded to the generation function.
// Hex and MaterialProfile are mutually exclusive for swatch-like finishes.
type ColorData struct {
	Kind              string     `json:"kind"`
	Name              string     `json:"name,omitempty"`
	Hex               string     `json:"hex,omitempty"`
	EndHex            string     `json:"endHex,omitempty"`
	Direction         string     `json:"direction,omitempty"`
	Finish            string     `json:"finish,omitempty"`
	Library           string     `json:"library,omitempty"`
	Manufacturer      string     `json:"manufacturer,omitempty"`
	MaterialProfile   string     `json:"materialProfile,omitempty"`
	IsVerifiedMatch   bool       `json:"isVerifiedMatch,omitempty"`
	PatternURL        string     `json:"patternUrl,omitempty"`
	PatternScale      float64    `json:"patternScale,omitempty"`
	Prompt            string     `json:"prompt,omitempty"`
	StyleLabel        string     `json:"styleLabel,omitempty"`
	ReferenceImageURL string     `json:"referenceImageUrl,omitempty"`
	Zones             []ZoneData `json:"zones,omitempty"`
}

// GenerationRequest - normalized payload for one view call.
// PreviousRenderURL is the render a revision applies to, empty otherwise.
type GenerationRequest struct {
	Vehicle           VehicleIdentity
	ColorData         ColorData
	Mode              Mode
	View              ViewType
	RevisionPrompt    string
	PreviousRenderURL string
	SkipLookups       bool
	BypassCache       bool
	CustomerID        string
}

// WithView returns a copy of the request targeting another view.
func (r GenerationRequest) WithView(view ViewType) GenerationRequest {
	r.View = view
	return r
}

// RenderResult - successful response of the generation function
type RenderResult struct {
	URL      string `json:"renderUrl"`
	RenderID string `json:"renderId"`
}

// JobState - lifecycle of a ViewJob
type JobState string

const (
	JobPending   JobState = "pending"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// ViewJob - one outstanding or completed remote call
type ViewJob struct {
	View      ViewType
	State     JobState
	URL       string
	RenderID  string
	Err       error
	Attempt   int
	StartedAt time.Time
	SettledAt time.Time
}

// NewViewJob creates a pending job for the view.
func NewViewJob(view ViewType, attempt int) ViewJob {
	if attempt <= 0 {
		attempt = 1
	}
	return ViewJob{View: view, State: JobPending, Attempt: attempt, StartedAt: time.Now()}
}

// Succeed settles a pending job with a result. Settled jobs are returned unchanged.
func (j ViewJob) Succeed(res RenderResult) ViewJob {
	if j.State != JobPending {
		return j
	}
	j.State = JobSucceeded
	j.URL = res.URL
	j.RenderID = res.RenderID
	j.SettledAt = time.Now()
	return j
}

// Fail settles a pending job with an error. Settled jobs are returned unchanged.
func (j ViewJob) Fail(err error) ViewJob {
	if j.State != JobPending {
		return j
	}
	j.State = JobFailed
	j.Err = err
	j.SettledAt = time.Now()
	return j
}

// Succeeded reports a terminal success.
func (j ViewJob) Succeeded() bool {
	return j.State == JobSucceeded
}

// Duration of the call, zero while pending.
func (j ViewJob) Duration() time.Duration {
	if j.SettledAt.IsZero() {
		return 0
	}
	return j.SettledAt.Sub(j.StartedAt)
}

// QuotaState - usage snapshot of one customer
type QuotaState struct {
	Tier                 string `json:"tier"`
	Consumed             int    `json:"consumed"`
	Limit                int    `json:"limit"`
	Unlimited            bool   `json:"unlimited"`
	OverageBillingLineID string `json:"overageBillingLineId,omitempty"`
}

// Remaining - generations left before overage, -1 when unlimited
func (q QuotaState) Remaining() int {
	if q.Unlimited {
		return -1
	}
	if left := q.Limit - q.Consumed; left > 0 {
		return left
	}
	return 0
}

// QualityVerdict - inspection result for one render (low score is bad)
type QualityVerdict struct {
	Score       int  `json:"score"`
	HasHardLine bool `json:"hasHardLine"`
}
