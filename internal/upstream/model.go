// Package upstream talks to the language-model provider. It defines the
// Model interface the turn orchestrator depends on, an OpenAI-compatible
// HTTP implementation, and the rate-limit retry policy shared by every call.
package upstream

import "context"

// Request is a single chat completion: one system prompt, one user prompt.
type Request struct {
	// Model overrides the client's default model when set.
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	// JSON asks the provider for a JSON object response.
	JSON bool
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Add returns the element-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Response is a completed call.
type Response struct {
	Text  string
	Usage Usage
}

// DeltaFunc receives streamed text fragments in order. Returning an error
// aborts the stream and Stream returns that error.
type DeltaFunc func(delta string) error

// Model is a language model. Implementations must return errors wrapping
// errors.ErrRateLimited for rate-limit rejections so the retry policy can
// recognize them.
type Model interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request, onDelta DeltaFunc) (Response, error)
}
