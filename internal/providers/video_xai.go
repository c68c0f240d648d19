package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bobarin/director/internal/credentials"
)

// xaiVideo is the VideoSynthesis adapter, grounded on the teacher's
// XAIVideoService (services/xai_video.go) — same deferred
// submit/request_id/poll REST shape against api.x.ai. Split into
// independent Submit and Poll methods rather than the teacher's inline
// pollForResult sleep loop: the Orchestrator owns tick-counting and
// scheduler wake-ups per the REDESIGN FLAGS in spec §9, so this adapter
// performs exactly one HTTP call per Poll and never blocks waiting for
// completion.
type xaiVideo struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

const (
	defaultXAIBaseURL  = "https://api.x.ai/v1"
	defaultXAIModel    = "grok-imagine-video"
	xaiMinDuration     = 1
	xaiMaxDuration     = 15
	xaiDefaultDuration = 12
	xaiResolution      = "720p"
)

func newXAIVideo(creds credentials.Credentials) *xaiVideo {
	model := creds.Model
	if model == "" {
		model = defaultXAIModel
	}
	baseURL := creds.Endpoint
	if baseURL == "" {
		baseURL = defaultXAIBaseURL
	}
	return &xaiVideo{
		apiKey:     creds.Token,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (v *xaiVideo) SupportsEndFrame() bool { return false }

type xaiImageInput struct {
	URL string `json:"url"`
}

type xaiGenerationRequest struct {
	Prompt      string         `json:"prompt"`
	Model       string         `json:"model"`
	Image       *xaiImageInput `json:"image,omitempty"`
	Duration    int            `json:"duration,omitempty"`
	AspectRatio string         `json:"aspect_ratio,omitempty"`
	Resolution  string         `json:"resolution,omitempty"`
}

type xaiGenerationResponse struct {
	RequestID string `json:"request_id"`
}

// xaiVideoResult mirrors the two response shapes xAI returns: pending
// ({"status":"pending"}) and completed ({"video":{"url":...}}, no status
// field).
type xaiVideoResult struct {
	Status string          `json:"status"`
	Video  *xaiVideoOutput `json:"video,omitempty"`
	Error  string          `json:"error"`
}

type xaiVideoOutput struct {
	URL      string `json:"url"`
	Duration int    `json:"duration"`
}

func clampXAIDuration(d float64) int {
	sec := int(d)
	if sec <= 0 {
		sec = xaiDefaultDuration
	}
	if sec < xaiMinDuration {
		sec = xaiMinDuration
	}
	if sec > xaiMaxDuration {
		sec = xaiMaxDuration
	}
	return sec
}

func (v *xaiVideo) Submit(ctx context.Context, motionPrompt, startURL, endURL string, duration float64, aspectRatio string) (string, error) {
	reqBody := xaiGenerationRequest{
		Prompt:      motionPrompt,
		Model:       v.model,
		Duration:    clampXAIDuration(duration),
		AspectRatio: aspectRatio,
		Resolution:  xaiResolution,
	}
	if startURL != "" {
		reqBody.Image = &xaiImageInput{URL: startURL}
	}

	var handle string
	err := WithRetry(ctx, func() error {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return &ProviderError{Retryable: false, Message: err.Error()}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/videos/generations", bytes.NewReader(jsonData))
		if err != nil {
			return &ProviderError{Retryable: false, Message: err.Error()}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+v.apiKey)

		resp, err := v.httpClient.Do(req)
		if err != nil {
			return ClassifyHTTPError(0, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &ProviderError{Retryable: true, Message: fmt.Sprintf("read body: %v", err)}
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
			return ClassifyHTTPError(resp.StatusCode, fmt.Errorf("xai: %s", string(body)))
		}

		var parsed xaiGenerationResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return &ProviderError{Retryable: false, Message: fmt.Sprintf("decode response: %v", err)}
		}
		if parsed.RequestID == "" {
			return &ProviderError{Retryable: false, Message: "xai response missing request_id"}
		}
		handle = parsed.RequestID
		return nil
	})
	if err != nil {
		return "", err
	}
	return handle, nil
}

func (v *xaiVideo) Poll(ctx context.Context, handle string) (VideoPollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/videos/%s", v.baseURL, handle), nil)
	if err != nil {
		return VideoPollResult{}, &ProviderError{Retryable: false, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return VideoPollResult{}, ClassifyHTTPError(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return VideoPollResult{}, &ProviderError{Retryable: true, Message: fmt.Sprintf("read body: %v", err)}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return VideoPollResult{}, ClassifyHTTPError(resp.StatusCode, fmt.Errorf("xai: %s", string(body)))
	}

	var result xaiVideoResult
	if err := json.Unmarshal(body, &result); err != nil {
		return VideoPollResult{}, &ProviderError{Retryable: false, Message: fmt.Sprintf("decode response: %v", err)}
	}

	if result.Video != nil && result.Video.URL != "" {
		return VideoPollResult{Status: VideoDone, URL: result.Video.URL}, nil
	}
	switch result.Status {
	case "failed":
		errMsg := result.Error
		if errMsg == "" {
			errMsg = "unknown error"
		}
		return VideoPollResult{Status: VideoFailed, Error: errMsg}, nil
	default:
		return VideoPollResult{Status: VideoRunning}, nil
	}
}

func (v *xaiVideo) EstimateCostUSD() float64 {
	return 0.50
}
