package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"wrap-render-server/modules/common/database"
	"wrap-render-server/modules/common/gemini"
	"wrap-render-server/modules/common/storage"
	"wrap-render-server/modules/common/utils"
	"wrap-render-server/modules/render"
)

// ContentGenerator is satisfied by *gemini.Pool.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Uploader is satisfied by *storage.Client.
type Uploader interface {
	UploadWebP(ctx context.Context, path string, data []byte) (*storage.Uploaded, error)
}

// RenderRecorder is satisfied by *database.Client.
type RenderRecorder interface {
	InsertRender(ctx context.Context, record database.RenderRecord) error
}

// maxInputImages bounds the image parts sent next to the prompt
const maxInputImages = 4

// GeminiGenerator renders views locally: Gemini image model -> WebP -> storage.
type GeminiGenerator struct {
	models   ContentGenerator
	model    string
	uploader Uploader
	records  RenderRecorder
	http     *resty.Client
	log      zerolog.Logger
}

// NewGeminiGenerator - records may be nil to skip the render row
func NewGeminiGenerator(models ContentGenerator, model string, uploader Uploader, records RenderRecorder, log zerolog.Logger) *GeminiGenerator {
	return &GeminiGenerator{
		models:   models,
		model:    model,
		uploader: uploader,
		records:  records,
		http:     resty.New().SetTimeout(30 * time.Second),
		log:      log,
	}
}

// inputImage - an image the model has to see, not just read about
type inputImage struct {
	label    string
	url      string
	required bool
}

// inputImages lists the images a request refers to. The finish images are
// required; the previous render only sharpens a revision.
func inputImages(req render.GenerationRequest) []inputImage {
	var images []inputImage
	if req.PreviousRenderURL != "" {
		images = append(images, inputImage{label: "previous render", url: req.PreviousRenderURL})
	}
	cd := req.ColorData
	if cd.PatternURL != "" {
		images = append(images, inputImage{label: "pattern", url: cd.PatternURL, required: true})
	}
	if cd.ReferenceImageURL != "" {
		images = append(images, inputImage{label: "reference", url: cd.ReferenceImageURL, required: true})
	}
	for _, z := range cd.Zones {
		if z.PatternURL != "" {
			images = append(images, inputImage{label: z.Area + " pattern", url: z.PatternURL, required: true})
		}
		if z.ReferenceImageURL != "" {
			images = append(images, inputImage{label: z.Area + " reference", url: z.ReferenceImageURL, required: true})
		}
	}
	return images
}

// fetchImage downloads url, or decodes it when it is an inline data: URL.
func (g *GeminiGenerator) fetchImage(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "data:") {
		return utils.DecodeBase64Image(url)
	}
	resp, err := g.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, &render.RemoteError{Operation: "download-image", StatusCode: resp.StatusCode()}
	}
	return resp.Body(), nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req render.GenerationRequest) (render.RenderResult, error) {
	prompt := BuildRenderPrompt(req)

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for i, img := range inputImages(req) {
		if i >= maxInputImages {
			g.log.Warn().Str("view", string(req.View)).Msgf("⚠️  [Gemini] Dropping input images beyond %d", maxInputImages)
			break
		}
		data, err := g.fetchImage(ctx, img.url)
		if err != nil {
			if img.required {
				return render.RenderResult{}, fmt.Errorf("failed to load %s image: %w", img.label, err)
			}
			g.log.Warn().Err(err).Str("view", string(req.View)).Msgf("⚠️  [Gemini] Skipping %s image", img.label)
			continue
		}
		g.log.Debug().Str("view", string(req.View)).Int("bytes", len(data)).Msgf("📷 [Gemini] Adding %s image", img.label)
		parts = append(parts, genai.NewPartFromBytes(data, utils.MimeType(data)))
	}
	content := &genai.Content{Parts: parts}

	g.log.Info().
		Str("view", string(req.View)).
		Str("vehicle", req.Vehicle.String()).
		Int("images", len(parts)-1).
		Msg("🎨 [Gemini] Generating view")

	result, err := g.models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{
				AspectRatio: aspectRatio(req.View),
			},
			Temperature: floatPtr(0.4),
		},
	)
	if err != nil {
		return render.RenderResult{}, fmt.Errorf("gemini generation failed: %w", err)
	}

	imageData, err := gemini.FirstImage(result)
	if err != nil {
		return render.RenderResult{}, fmt.Errorf("gemini returned no image for %s: %w", req.View, err)
	}

	webpData, err := utils.ConvertToWebP(imageData, utils.DefaultWebPQuality)
	if err != nil {
		return render.RenderResult{}, fmt.Errorf("failed to convert image to webp: %w", err)
	}

	uploaded, err := g.uploader.UploadWebP(ctx, storage.RenderPath(req.CustomerID, string(req.View)), webpData)
	if err != nil {
		return render.RenderResult{}, err
	}

	renderID := uuid.NewString()
	if g.records != nil {
		record := database.RenderRecord{
			RenderID:     renderID,
			CustomerID:   req.CustomerID,
			VehicleYear:  req.Vehicle.Year,
			VehicleMake:  req.Vehicle.Make,
			VehicleModel: req.Vehicle.Model,
			ModeType:     string(req.Mode),
			ViewType:     string(req.View),
			RenderURL:    uploaded.PublicURL,
			StoragePath:  uploaded.Path,
			FileSize:     uploaded.Size,
		}
		if err := g.records.InsertRender(ctx, record); err != nil {
			g.log.Warn().Err(err).Str("renderId", renderID).Msg("⚠️  [Gemini] Failed to record render")
		}
	}

	g.log.Info().
		Str("view", string(req.View)).
		Int("pngBytes", len(imageData)).
		Int("webpBytes", len(webpData)).
		Msg("✅ [Gemini] View rendered")

	return render.RenderResult{URL: uploaded.PublicURL, RenderID: renderID}, nil
}

// GeminiInspector grades renders with a Gemini text model.
type GeminiInspector struct {
	models ContentGenerator
	model  string
	http   *resty.Client
	log    zerolog.Logger
}

func NewGeminiInspector(models ContentGenerator, model string, log zerolog.Logger) *GeminiInspector {
	return &GeminiInspector{
		models: models,
		model:  model,
		http:   resty.New().SetTimeout(30 * time.Second),
		log:    log,
	}
}

func (i *GeminiInspector) Inspect(ctx context.Context, url, renderID string) (render.QualityVerdict, error) {
	resp, err := i.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return render.QualityVerdict{}, fmt.Errorf("failed to download render: %w", err)
	}
	if resp.IsError() {
		return render.QualityVerdict{}, &render.RemoteError{Operation: "download-render", StatusCode: resp.StatusCode()}
	}
	imageData := resp.Body()

	content := &genai.Content{
		Parts: []*genai.Part{
			genai.NewPartFromBytes(imageData, utils.MimeType(imageData)),
			genai.NewPartFromText(BuildInspectPrompt(render.ModeGradient)),
		},
	}

	result, err := i.models.GenerateContent(ctx, i.model, []*genai.Content{content}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      floatPtr(0),
	})
	if err != nil {
		return render.QualityVerdict{}, fmt.Errorf("gemini inspection failed: %w", err)
	}

	verdict, err := ParseVerdict(responseText(result))
	if err != nil {
		return render.QualityVerdict{}, err
	}

	i.log.Info().
		Str("renderId", renderID).
		Int("score", verdict.Score).
		Bool("hardLine", verdict.HasHardLine).
		Msg("🔍 [Gemini] Render inspected")
	return verdict, nil
}

// ParseVerdict reads {"score", "hasHardLine"} from model output, tolerating
// markdown fences around the JSON.
func ParseVerdict(text string) (render.QualityVerdict, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return render.QualityVerdict{}, fmt.Errorf("no verdict in inspection output %q", text)
	}

	var parsed inspectResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return render.QualityVerdict{}, fmt.Errorf("failed to parse verdict: %w", err)
	}

	score := parsed.Score
	if score < 1 {
		score = 1
	}
	if score > 5 {
		score = 5
	}
	return render.QualityVerdict{Score: score, HasHardLine: parsed.HasHardLine}, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func aspectRatio(view render.ViewType) string {
	switch view {
	case render.ViewTop:
		return "1:1"
	case render.ViewDetail:
		return "4:3"
	default:
		return "16:9"
	}
}

func floatPtr(f float32) *float32 {
	return &f
}
