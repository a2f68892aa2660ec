package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wrap-render-server/modules/common/config"
)

// Uploaded - location of an object written to the bucket
type Uploaded struct {
	Path      string
	PublicURL string
	Size      int64
}

type Client struct {
	http      *resty.Client
	bucket    string
	publicURL string
	log       zerolog.Logger
}

// NewClient - storage client for the configured bucket
func NewClient(cfg *config.Config, log zerolog.Logger) *Client {
	base := strings.TrimRight(cfg.SupabaseURL, "/")

	publicURL := strings.TrimRight(cfg.SupabaseStorageBaseURL, "/")
	if publicURL == "" {
		publicURL = fmt.Sprintf("%s/storage/v1/object/public/%s", base, cfg.SupabaseStorageBucket)
	}

	httpClient := resty.New().
		SetBaseURL(base+"/storage/v1").
		SetHeader("Authorization", "Bearer "+cfg.SupabaseServiceKey).
		SetHeader("apikey", cfg.SupabaseServiceKey).
		SetTimeout(60 * time.Second)

	return &Client{
		http:      httpClient,
		bucket:    cfg.SupabaseStorageBucket,
		publicURL: publicURL,
		log:       log,
	}
}

// RenderPath - object path of one generated view
func RenderPath(customerID, viewType string) string {
	owner := customerID
	if owner == "" {
		owner = "anonymous"
	}
	return fmt.Sprintf("renders/customer-%s/%s_%d_%s.webp",
		owner, viewType, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// UploadWebP - upload an already encoded webp image
func (c *Client) UploadWebP(ctx context.Context, path string, data []byte) (*Uploaded, error) {
	c.log.Info().Str("path", path).Int("bytes", len(data)).Msg("📤 [Storage] Uploading render")

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "image/webp").
		SetHeader("x-upsert", "true").
		SetBody(data).
		Post(fmt.Sprintf("/object/%s/%s", c.bucket, path))
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	uploaded := &Uploaded{
		Path:      path,
		PublicURL: c.publicURL + "/" + path,
		Size:      int64(len(data)),
	}
	c.log.Info().Str("url", uploaded.PublicURL).Msg("✅ [Storage] Render uploaded")
	return uploaded, nil
}
