package design

import (
	"fmt"
	"net/http"
	"time"

	"wrap-render-server/modules/render"
	"wrap-render-server/modules/renderset"
	"wrap-render-server/modules/session"
)

// SelectionPayload - wire form of a finish selection, tagged by kind
type SelectionPayload struct {
	Kind string `json:"kind"`
	render.Finish

	PatternURL string        `json:"patternUrl,omitempty"`
	Scale      float64       `json:"scale,omitempty"`
	EndHex     string        `json:"endHex,omitempty"`
	Direction  string        `json:"direction,omitempty"`
	Prompt     string        `json:"prompt,omitempty"`
	ImageURL   string        `json:"imageUrl,omitempty"`
	Zones      []ZonePayload `json:"zones,omitempty"`
}

// ZonePayload - one area of a composite selection
type ZonePayload struct {
	Area      string            `json:"area"`
	Selection *SelectionPayload `json:"selection"`
}

// Decode converts the payload into its concrete selection variant.
func (p *SelectionPayload) Decode() (render.FinishSelection, error) {
	if p == nil {
		return nil, nil
	}

	switch p.Kind {
	case "swatch", "color", "":
		return render.Swatch{Finish: p.Finish}, nil
	case "pattern":
		return render.Pattern{Finish: p.Finish, PatternURL: p.PatternURL, Scale: p.Scale}, nil
	case "gradient":
		return render.Gradient{Finish: p.Finish, EndHex: p.EndHex, Direction: p.Direction}, nil
	case "free_text":
		return render.FreeTextStyle{Prompt: p.Prompt}, nil
	case "reference_image":
		return render.ReferenceImage{Finish: p.Finish, ImageURL: p.ImageURL}, nil
	case "composite":
		zones := make([]render.Zone, 0, len(p.Zones))
		for i, z := range p.Zones {
			sel, err := z.Selection.Decode()
			if err != nil {
				return nil, render.NewValidationError(fmt.Sprintf("zones[%d]", i), err.Error())
			}
			zones = append(zones, render.Zone{Area: z.Area, Selection: sel})
		}
		return render.Composite{DisplayName: p.DisplayName, Zones: zones}, nil
	default:
		return nil, render.NewValidationError("selection.kind", fmt.Sprintf("unknown kind %q", p.Kind))
	}
}

// GenerateRequest - body of POST /api/design/generate and of queued jobs
type GenerateRequest struct {
	SessionID      string            `json:"sessionId,omitempty"`
	CustomerID     string            `json:"customerId,omitempty"`
	Scope          string            `json:"scope,omitempty"`
	VehicleYear    string            `json:"vehicleYear"`
	VehicleMake    string            `json:"vehicleMake"`
	VehicleModel   string            `json:"vehicleModel"`
	ModeType       render.Mode       `json:"modeType"`
	Views          []render.ViewType `json:"views,omitempty"`
	Selection      *SelectionPayload `json:"selection,omitempty"`
	RevisionPrompt string            `json:"revisionPrompt,omitempty"`
	BypassCache    bool              `json:"bypassCache,omitempty"`
	NewDesign      bool              `json:"newDesign,omitempty"`
}

// Input builds the engine input.
func (r GenerateRequest) Input() (session.Input, error) {
	sel, err := r.Selection.Decode()
	if err != nil {
		return session.Input{}, err
	}

	return session.Input{
		SessionID:  r.SessionID,
		CustomerID: r.CustomerID,
		Scope:      r.Scope,
		Vehicle: render.VehicleIdentity{
			Year:  r.VehicleYear,
			Make:  r.VehicleMake,
			Model: r.VehicleModel,
		},
		Selection:      sel,
		Mode:           r.ModeType,
		Views:          r.Views,
		RevisionPrompt: r.RevisionPrompt,
		BypassCache:    r.BypassCache,
		NewDesign:      r.NewDesign,
	}, nil
}

// Response - every endpoint answers with this envelope
type Response struct {
	Success      bool              `json:"success"`
	ErrorCode    string            `json:"errorCode,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Session      *session.Snapshot `json:"session,omitempty"`
	Views        []renderset.Entry `json:"views,omitempty"`
	SavedAt      *time.Time        `json:"savedAt,omitempty"`
	Quota        *QuotaView        `json:"quota,omitempty"`
}

// QuotaView - quota snapshot with the derived remaining count
type QuotaView struct {
	render.QuotaState
	Remaining int `json:"remaining"`
}

// StatusFor maps an error code onto its HTTP status.
func StatusFor(code string) int {
	switch code {
	case render.CodeInvalidRequest:
		return http.StatusBadRequest
	case render.CodeQuotaExceeded:
		return http.StatusPaymentRequired
	case render.CodeAuthRequired:
		return http.StatusUnauthorized
	case render.CodeRenderFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
