// Package llm talks to a streaming text-completion service and decodes its
// token stream into a single JSON object or plain text.
package llm

import (
	"context"
	"errors"
	"time"
)

const (
	defaultEndpoint  = "http://localhost:8081/completion"
	defaultAPIKeyEnv = "PLLM_API_KEY"
	streamPrefix     = "data:"
	streamDone       = "[DONE]"
)

// ErrTransport marks failures talking to the completion service.
var ErrTransport = errors.New("completion transport")

// Kind tells what a completion produced.
type Kind int

const (
	// KindText is plain text: a stop-marker hit, an unterminated object or a
	// partial response after a transport failure.
	KindText Kind = iota
	// KindObject is one balanced top-level JSON object.
	KindObject
)

func (k Kind) String() string {
	if k == KindObject {
		return "object"
	}
	return "text"
}

// Config is completion client configuration.
type Config struct {
	Endpoint  string
	APIKey    string
	APIKeyEnv string
	// Timeout bounds a whole request; zero leaves it to the transport.
	Timeout  time.Duration
	Defaults Params
}

// Params are generation parameters sent with every request.
type Params struct {
	MaxTokens   int      `json:"n_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	MinP        float64  `json:"min_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Temperature returns a pointer for Params.Temperature.
func Temperature(t float64) *float64 {
	return &t
}

// Merge returns p overridden by every non-zero field of o.
func (p Params) Merge(o Params) Params {
	if o.MaxTokens != 0 {
		p.MaxTokens = o.MaxTokens
	}
	if o.Temperature != nil {
		p.Temperature = o.Temperature
	}
	if o.TopK != 0 {
		p.TopK = o.TopK
	}
	if o.TopP != 0 {
		p.TopP = o.TopP
	}
	if o.MinP != 0 {
		p.MinP = o.MinP
	}
	if len(o.Stop) > 0 {
		p.Stop = o.Stop
	}
	return p
}

// Request is one completion request.
type Request struct {
	// Purpose labels the request in logs, e.g. "sample" or "select".
	Purpose string
	Prompt  string
	Params  Params
	// StopAt ends decoding once the plain text contains it.
	StopAt string
	// Review offers a decoded object to the Reviewer before returning it.
	Review bool
}

// Result is the outcome of one completion. Err is set on transport failure;
// Text then holds whatever arrived before the failure.
type Result struct {
	Kind   Kind
	Object string
	Text   string
	Err    error
}

// Completer issues completion requests.
type Completer interface {
	Complete(ctx context.Context, req Request) Result
}

// Reviewer may replace a decoded object before it is used.
type Reviewer interface {
	Review(ctx context.Context, object string) string
}
