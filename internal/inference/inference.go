package inference

import (
	"context"
	"fmt"
)

// Role constants for chat messages.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is a single chat message sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float32
}

// Usage reports token consumption as returned by the remote side.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the result of a successful call.
type Completion struct {
	Text  string
	Usage Usage
	Model string
}

// Caller abstracts the external model-inference API. Implementations must
// honor ctx cancellation and return *TransportError for network/timeout
// failures and *RemoteError for non-2xx or malformed remote responses so
// callers can tell the two apart.
type Caller interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// TransportError indicates the call never produced a usable remote response
// (connection refused, timeout, ctx cancellation).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "inference transport error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError indicates the remote side answered with an error payload or a
// response we could not interpret.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("inference remote error (status %d): %s", e.StatusCode, e.Message)
	}
	return "inference remote error: " + e.Message
}
