package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"wrap-render-server/modules/render"
)

// OverageRegistrar bills one generation beyond the tier limit.
type OverageRegistrar interface {
	RegisterOverage(ctx context.Context, billingLineID string) error
}

type overageResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// FunctionOverage calls the register-overage edge function.
type FunctionOverage struct {
	http *resty.Client
}

// NewFunctionOverage - baseURL is the functions root, e.g. https://x.supabase.co/functions/v1
func NewFunctionOverage(baseURL, serviceKey string, timeout time.Duration) *FunctionOverage {
	return &FunctionOverage{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Authorization", "Bearer "+serviceKey).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
	}
}

func (f *FunctionOverage) RegisterOverage(ctx context.Context, billingLineID string) error {
	var result overageResponse
	resp, err := f.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"billingLineId": billingLineID}).
		SetResult(&result).
		SetError(&result).
		Post("/register-overage")
	if err != nil {
		return fmt.Errorf("overage request failed: %w", err)
	}
	if resp.IsError() {
		return &render.RemoteError{Operation: "register-overage", StatusCode: resp.StatusCode(), Message: result.Error}
	}
	if !result.Success {
		return &render.RemoteError{Operation: "register-overage", Message: result.Error}
	}
	return nil
}
