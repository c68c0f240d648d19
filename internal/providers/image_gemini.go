package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bobarin/director/internal/credentials"
)

// geminiImage is the ImageSynthesis adapter, grounded on the teacher's
// GeminiService (services/gemini.go) — same hand-rolled REST call against
// generativelanguage.googleapis.com, the same inline-data image response
// shape. Unlike the teacher, this adapter carries no style-reference-image
// or preset plumbing (image_prompt already carries the full scene
// description per spec §4.2 step 3) and returns the image as a data: URI
// rather than uploading to object storage, since no storage concern
// exists in this system (spec §1 Non-goals).
type geminiImage struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

const (
	defaultGeminiModel    = "gemini-3-pro-image-preview"
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
)

func newGeminiImage(creds credentials.Credentials) *geminiImage {
	model := creds.Model
	if model == "" {
		model = defaultGeminiModel
	}
	endpoint := creds.Endpoint
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	return &geminiImage{
		apiKey:   creds.Token,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 300 * time.Second, Transport: http.DefaultTransport},
	}
}

func (g *geminiImage) SupportsSeed() bool { return false }

type geminiGenerateContentRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string         `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content geminiResponseContent `json:"content"`
}

type geminiResponseContent struct {
	Parts []geminiResponsePart `json:"parts"`
}

type geminiResponsePart struct {
	Text       string             `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

func aspectRatioFromDims(width, height int) string {
	switch {
	case width == height:
		return "1:1"
	case width > height:
		return "16:9"
	default:
		return "9:16"
	}
}

func (g *geminiImage) Synthesize(ctx context.Context, prompt string, width, height int, seed int64) (ImageResult, error) {
	reqBody := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig: &geminiImageConfig{
				AspectRatio: aspectRatioFromDims(width, height),
				ImageSize:   "4K",
			},
		},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return ImageResult{}, fmt.Errorf("providers: marshal gemini request: %w", err)
	}

	var result ImageResult
	err = WithRetry(ctx, func() error {
		url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return &ProviderError{Retryable: false, Message: err.Error()}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return ClassifyHTTPError(0, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &ProviderError{Retryable: true, Message: fmt.Sprintf("read body: %v", err)}
		}
		if resp.StatusCode != http.StatusOK {
			return ClassifyHTTPError(resp.StatusCode, fmt.Errorf("gemini: %s", string(body)))
		}

		var parsed geminiGenerateContentResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return &ProviderError{Retryable: false, Message: fmt.Sprintf("decode response: %v", err)}
		}
		if len(parsed.Candidates) == 0 {
			return &ProviderError{Retryable: false, Message: "gemini returned no candidates"}
		}
		for _, part := range parsed.Candidates[0].Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				raw, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return &ProviderError{Retryable: false, Message: fmt.Sprintf("decode image bytes: %v", err)}
				}
				result = ImageResult{
					URL:    fmt.Sprintf("data:%s;base64,%s", part.InlineData.MimeType, base64.StdEncoding.EncodeToString(raw)),
					Width:  width,
					Height: height,
				}
				return nil
			}
		}
		return &ProviderError{Retryable: false, Message: "gemini returned no image data"}
	})
	if err != nil {
		return ImageResult{}, err
	}
	return result, nil
}

func (g *geminiImage) EstimateCostUSD() float64 {
	return 0.04
}
