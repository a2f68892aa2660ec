package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"wrap-render-server/modules/render"
)

type generatePayload struct {
	VehicleYear        string           `json:"vehicleYear"`
	VehicleMake        string           `json:"vehicleMake"`
	VehicleModel       string           `json:"vehicleModel"`
	ColorData          render.ColorData `json:"colorData"`
	ModeType           render.Mode      `json:"modeType"`
	ViewType           render.ViewType  `json:"viewType"`
	RevisionPrompt     string           `json:"revisionPrompt,omitempty"`
	PreviousRenderURL  string           `json:"previousRenderUrl,omitempty"`
	SkipLookups        bool             `json:"skipLookups,omitempty"`
	BypassCache        bool             `json:"bypassCache,omitempty"`
	CustomerIdentifier string           `json:"customerIdentifier,omitempty"`
}

type generateResponse struct {
	RenderURL string `json:"renderUrl"`
	RenderID  string `json:"renderId"`
	Error     string `json:"error,omitempty"`
}

type inspectPayload struct {
	RenderURL string `json:"renderUrl"`
	RenderID  string `json:"renderId,omitempty"`
}

type inspectResponse struct {
	Score       int    `json:"score"`
	HasHardLine bool   `json:"hasHardLine"`
	Error       string `json:"error,omitempty"`
}

// FunctionClient calls the hosted generate-render and inspect-render functions.
type FunctionClient struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewFunctionClient - baseURL is the functions root, e.g. https://x.supabase.co/functions/v1
func NewFunctionClient(baseURL, serviceKey string, timeout time.Duration, log zerolog.Logger) *FunctionClient {
	return &FunctionClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Authorization", "Bearer "+serviceKey).
			SetHeader("apikey", serviceKey).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
		log: log,
	}
}

func (c *FunctionClient) Generate(ctx context.Context, req render.GenerationRequest) (render.RenderResult, error) {
	payload := generatePayload{
		VehicleYear:        req.Vehicle.Year,
		VehicleMake:        req.Vehicle.Make,
		VehicleModel:       req.Vehicle.Model,
		ColorData:          req.ColorData,
		ModeType:           req.Mode,
		ViewType:           req.View,
		RevisionPrompt:     req.RevisionPrompt,
		PreviousRenderURL:  req.PreviousRenderURL,
		SkipLookups:        req.SkipLookups,
		BypassCache:        req.BypassCache,
		CustomerIdentifier: req.CustomerID,
	}

	var result generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		SetError(&result).
		Post("/generate-render")
	if err != nil {
		return render.RenderResult{}, fmt.Errorf("generate-render request failed: %w", err)
	}
	if resp.IsError() || result.Error != "" {
		return render.RenderResult{}, &render.RemoteError{
			Operation:  "generate-render",
			StatusCode: resp.StatusCode(),
			Message:    result.Error,
		}
	}

	c.log.Debug().Str("view", string(req.View)).Str("renderId", result.RenderID).Msg("📥 [Function] Render returned")
	return render.RenderResult{URL: result.RenderURL, RenderID: result.RenderID}, nil
}

func (c *FunctionClient) Inspect(ctx context.Context, url, renderID string) (render.QualityVerdict, error) {
	var result inspectResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(inspectPayload{RenderURL: url, RenderID: renderID}).
		SetResult(&result).
		SetError(&result).
		Post("/inspect-render")
	if err != nil {
		return render.QualityVerdict{}, fmt.Errorf("inspect-render request failed: %w", err)
	}
	if resp.IsError() || result.Error != "" {
		return render.QualityVerdict{}, &render.RemoteError{
			Operation:  "inspect-render",
			StatusCode: resp.StatusCode(),
			Message:    result.Error,
		}
	}
	return render.QualityVerdict{Score: result.Score, HasHardLine: result.HasHardLine}, nil
}
