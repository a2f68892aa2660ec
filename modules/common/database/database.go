package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/supabase-community/supabase-go"

	"wrap-render-server/modules/common/config"
	"wrap-render-server/modules/render"
)

const (
	tableCustomerQuotas = "customer_quotas"
	tableRenders        = "vehicle_renders"
)

// QuotaRecord - row of customer_quotas
type QuotaRecord struct {
	CustomerID           string  `json:"customer_id"`
	Tier                 string  `json:"tier"`
	Consumed             int     `json:"renders_consumed"`
	Limit                int     `json:"renders_limit"`
	Unlimited            bool    `json:"unlimited"`
	OverageBillingLineID *string `json:"overage_billing_line_id"`
}

// State converts the row into a quota snapshot.
func (r QuotaRecord) State() render.QuotaState {
	state := render.QuotaState{
		Tier:      r.Tier,
		Consumed:  r.Consumed,
		Limit:     r.Limit,
		Unlimited: r.Unlimited,
	}
	if r.OverageBillingLineID != nil {
		state.OverageBillingLineID = *r.OverageBillingLineID
	}
	return state
}

// RenderRecord - row of vehicle_renders written by the local backend
type RenderRecord struct {
	RenderID     string `json:"render_id"`
	CustomerID   string `json:"customer_id,omitempty"`
	VehicleYear  string `json:"vehicle_year"`
	VehicleMake  string `json:"vehicle_make"`
	VehicleModel string `json:"vehicle_model"`
	ModeType     string `json:"mode_type"`
	ViewType     string `json:"view_type"`
	RenderURL    string `json:"render_url"`
	StoragePath  string `json:"storage_path"`
	FileSize     int64  `json:"file_size"`
}

type Client struct {
	supabase *supabase.Client
	log      zerolog.Logger
}

// NewClient - supabase client using the service key
func NewClient(cfg *config.Config, log zerolog.Logger) (*Client, error) {
	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	return &Client{
		supabase: supabaseClient,
		log:      log,
	}, nil
}

// FetchQuota - quota row of a customer, nil when none exists
func (c *Client) FetchQuota(ctx context.Context, customerID string) (*QuotaRecord, error) {
	var records []QuotaRecord

	data, _, err := c.supabase.From(tableCustomerQuotas).
		Select("*", "exact", false).
		Eq("customer_id", customerID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", tableCustomerQuotas, err)
	}

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse quota response: %w", err)
	}

	if len(records) == 0 {
		c.log.Debug().Str("customer", customerID).Msg("🔍 [Database] No quota record")
		return nil, nil
	}

	record := &records[0]
	c.log.Debug().
		Str("customer", customerID).
		Str("tier", record.Tier).
		Int("consumed", record.Consumed).
		Int("limit", record.Limit).
		Msg("✅ [Database] Quota fetched")
	return record, nil
}

// UpdateQuotaConsumed - persist the consumed counter
func (c *Client) UpdateQuotaConsumed(ctx context.Context, customerID string, consumed int) error {
	updateData := map[string]interface{}{
		"renders_consumed": consumed,
		"updated_at":       "now()",
	}

	_, _, err := c.supabase.From(tableCustomerQuotas).
		Update(updateData, "", "").
		Eq("customer_id", customerID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update quota: %w", err)
	}

	c.log.Debug().Str("customer", customerID).Int("consumed", consumed).Msg("📝 [Database] Quota updated")
	return nil
}

// InsertRender - record a generated view
func (c *Client) InsertRender(ctx context.Context, record RenderRecord) error {
	_, _, err := c.supabase.From(tableRenders).
		Insert(record, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert render record: %w", err)
	}

	c.log.Info().
		Str("render", record.RenderID).
		Str("view", record.ViewType).
		Msg("💾 [Database] Render record created")
	return nil
}
