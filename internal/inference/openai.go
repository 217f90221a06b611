package inference

import (
	"context"
	"errors"
	"net"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICaller is the SDK-style transport. It speaks the OpenAI-compatible
// chat-completions protocol, which Cerebras and most inference providers
// expose, through the go-openai client.
type OpenAICaller struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAICaller builds an SDK transport against the given endpoint.
// baseURL may be empty to use the provider default.
func NewOpenAICaller(apiKey, baseURL, defaultModel string) *OpenAICaller {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICaller{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: defaultModel,
	}
}

func (c *OpenAICaller) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, classifySDKError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &RemoteError{Message: "completion returned no choices"}
	}

	return &Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model: model,
	}, nil
}

// classifySDKError maps go-openai errors onto the transport/remote split.
func classifySDKError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &RemoteError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransportError{Err: err}
	}
	// Anything else from the SDK is a failed exchange with no remote verdict.
	return &TransportError{Err: err}
}
