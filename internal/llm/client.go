package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Client streams completions from an HTTP endpoint.
type Client struct {
	cfg      Config
	apiKey   string
	http     *http.Client
	reviewer Reviewer
	echo     io.Writer
	logger   zerolog.Logger
	audit    zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithReviewer lets a human review decoded objects.
func WithReviewer(r Reviewer) Option {
	return func(c *Client) { c.reviewer = r }
}

// WithEcho copies streamed content to w as it arrives.
func WithEcho(w io.Writer) Option {
	return func(c *Client) { c.echo = w }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithAudit records every prompt and raw response to l.
func WithAudit(l zerolog.Logger) Option {
	return func(c *Client) { c.audit = l }
}

// NewClient constructs a completion client.
func NewClient(cfg Config, httpClient *http.Client, opts ...Option) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("completion endpoint %q must be an http(s) URL", endpoint)
	}
	cfg.Endpoint = endpoint

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		envKey := strings.TrimSpace(cfg.APIKeyEnv)
		if envKey == "" {
			envKey = defaultAPIKeyEnv
		}
		apiKey = strings.TrimSpace(os.Getenv(envKey))
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		cfg:    cfg,
		apiKey: apiKey,
		http:   httpClient,
		logger: zerolog.Nop(),
		audit:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type requestBody struct {
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Params
}

// frame is one server-sent event. llama.cpp style servers send content
// directly, OpenAI-compatible ones nest it in choices.
type frame struct {
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
	Choices []struct {
		Text  string `json:"text"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (f frame) text() string {
	if f.Content != "" || len(f.Choices) == 0 {
		return f.Content
	}
	if f.Choices[0].Text != "" {
		return f.Choices[0].Text
	}
	return f.Choices[0].Delta.Content
}

// Complete streams one completion and returns as soon as a balanced JSON
// object or the stop marker has been seen. The rest of the stream is not read.
func (c *Client) Complete(ctx context.Context, req Request) Result {
	l := c.logger.With().Str("purpose", req.Purpose).Logger()
	c.audit.Info().Str("purpose", req.Purpose).Str("prompt", req.Prompt).Msg("prompt")

	res := c.stream(ctx, req, l)

	ev := c.audit.Info().Str("purpose", req.Purpose).Stringer("kind", res.Kind)
	if res.Kind == KindObject {
		ev = ev.Str("response", res.Object)
	} else {
		ev = ev.Str("response", res.Text)
	}
	if res.Err != nil {
		ev = ev.AnErr("transport_error", res.Err)
	}
	ev.Msg("response")

	if res.Kind == KindObject && req.Review && c.reviewer != nil {
		res.Object = c.reviewer.Review(ctx, res.Object)
	}
	return res
}

func (c *Client) stream(ctx context.Context, req Request, l zerolog.Logger) Result {
	body, err := json.Marshal(requestBody{
		Prompt: req.Prompt,
		Stream: true,
		Params: c.cfg.Defaults.Merge(req.Params),
	})
	if err != nil {
		return Result{Err: fmt.Errorf("marshal completion request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("%w: build request: %w", ErrTransport, err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		l.Error().Err(err).Msg("completion request failed")
		return Result{Err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, strings.TrimSpace(string(data)))
		l.Error().Err(err).Msg("completion request rejected")
		return Result{Err: err}
	}

	dec := NewDecoder(req.StopAt)
	reader := bufio.NewReader(resp.Body)
	for {
		line, readErr := reader.ReadString('\n')
		if content, stop, ok := c.parseLine(line, l); ok {
			if c.echo != nil && content != "" {
				_, _ = io.WriteString(c.echo, content)
			}
			if kind, value, done := dec.Feed(content); done {
				if kind == KindObject {
					return Result{Kind: KindObject, Object: value, Text: dec.Text()}
				}
				return Result{Kind: KindText, Text: value}
			}
			if stop {
				break
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			l.Error().Err(readErr).Msg("completion stream interrupted")
			return Result{Kind: KindText, Text: dec.Text(), Err: fmt.Errorf("%w: read stream: %w", ErrTransport, readErr)}
		}
	}

	if dec.Depth() != 0 {
		l.Warn().Int("depth", dec.Depth()).Msg("unmatched braces in completion")
	}
	return Result{Kind: KindText, Text: dec.Text()}
}

// parseLine extracts content from one stream line. ok is false for lines that
// carry nothing; stop is set on the terminal frame.
func (c *Client) parseLine(line string, l zerolog.Logger) (content string, stop, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false, false
	}
	payload, found := strings.CutPrefix(line, streamPrefix)
	if !found {
		l.Debug().Str("line", line).Msg("skipping non-data stream line")
		return "", false, false
	}
	payload = strings.TrimSpace(payload)
	if payload == streamDone {
		return "", true, true
	}
	var f frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		l.Warn().Err(err).Str("chunk", payload).Msg("skipping malformed stream chunk")
		return "", false, false
	}
	return f.text(), f.Stop, true
}
