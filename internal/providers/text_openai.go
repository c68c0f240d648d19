package providers

import (
	"context"
	"fmt"

	"github.com/bobarin/director/internal/credentials"
	openai "github.com/sashabaranov/go-openai"
)

// openAIText is the TextCompletion adapter, grounded on the teacher's
// OpenAIService.GeneratePlan (services/openai.go) — same client, same
// JSON-mode chat completion call, generalized from the teacher's
// hardcoded clip-plan prompt pair into the capability-neutral
// TextCompletion.Chat contract; prompt construction itself moves to
// internal/director.
type openAIText struct {
	client *openai.Client
	model  string
}

const defaultOpenAIModel = "gpt-5-mini"

func newOpenAIText(creds credentials.Credentials) *openAIText {
	model := creds.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openAIText{client: openai.NewClient(creds.Token), model: model}
}

func (a *openAIText) Chat(ctx context.Context, systemPrompt, userPrompt string, opts ChatOptions) (ChatResult, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: float32(opts.Temperature),
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var result ChatResult
	err := WithRetry(ctx, func() error {
		resp, err := a.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return &ProviderError{Retryable: false, Message: "openai returned no choices"}
		}
		result = ChatResult{
			Content:      resp.Choices[0].Message.Content,
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
		return nil
	})
	if err != nil {
		return ChatResult{}, err
	}
	return result, nil
}

// EstimateCostUSD gives a coarse per-call estimate; exact usage-based
// billing is out of scope. director.EstimateCost does not call it: its
// text line is a fixed token-count estimate.
func (a *openAIText) EstimateCostUSD() float64 {
	return 0.01
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if ok := asOpenAIAPIError(err, &apiErr); ok {
		return ClassifyHTTPError(apiErr.HTTPStatusCode, err)
	}
	return &ProviderError{Retryable: true, Message: fmt.Sprintf("openai request failed: %v", err)}
}

func asOpenAIAPIError(err error, target **openai.APIError) bool {
	apiErr, ok := err.(*openai.APIError)
	if !ok {
		return false
	}
	*target = apiErr
	return true
}
