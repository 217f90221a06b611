package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultRESTEndpoint is the Cerebras-compatible chat-completions URL used
// when no endpoint is configured.
const DefaultRESTEndpoint = "https://api.cerebras.ai/v1/chat/completions"

// RESTCaller is the plain-HTTP transport: a direct POST against an
// OpenAI-compatible chat-completions endpoint with no SDK in between.
type RESTCaller struct {
	endpoint     string
	apiKey       string
	defaultModel string
	httpClient   *http.Client
}

// NewRESTCaller builds a REST transport. endpoint may be empty to use
// DefaultRESTEndpoint.
func NewRESTCaller(apiKey, endpoint, defaultModel string) *RESTCaller {
	if endpoint == "" {
		endpoint = DefaultRESTEndpoint
	}
	return &RESTCaller{
		endpoint:     endpoint,
		apiKey:       apiKey,
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

type restRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float32   `json:"temperature"`
}

type restResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *RESTCaller) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	payload, err := json.Marshal(restRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(body)
		var parsed restResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: msg}
	}

	var parsed restResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: "malformed completion response: " + err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: "completion returned no choices"}
	}

	return &Completion{
		Text:  parsed.Choices[0].Message.Content,
		Usage: parsed.Usage,
		Model: model,
	}, nil
}
