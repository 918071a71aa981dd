package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/metalagman/pllm/internal/llm"
	"github.com/metalagman/pllm/internal/prompt"
	"github.com/rs/zerolog"
)

const defaultSummaryLimit = 390

// DefaultParams are the sampling parameters of summary requests.
func DefaultParams() llm.Params {
	return llm.Params{MaxTokens: defaultSummaryLimit, Temperature: llm.Temperature(0.7)}
}

// Compactor condenses a Log once it reaches Limit records.
type Compactor struct {
	completer llm.Completer
	prompts   prompt.Assembler
	limit     int
	chars     int
	params    llm.Params
	logger    zerolog.Logger
}

// NewCompactor returns a compactor triggered at limit records, asking for a
// digest of at most chars characters.
func NewCompactor(completer llm.Completer, prompts prompt.Assembler, limit, chars int, params llm.Params, logger zerolog.Logger) *Compactor {
	if chars <= 0 {
		chars = defaultSummaryLimit
	}
	return &Compactor{
		completer: completer,
		prompts:   prompts,
		limit:     limit,
		chars:     chars,
		params:    params,
		logger:    logger,
	}
}

// Due reports whether log has reached the limit.
func (c *Compactor) Due(log *Log) bool {
	return c.limit > 0 && log.Len() >= c.limit
}

// Remaining returns how many records may be appended before compaction.
func (c *Compactor) Remaining(log *Log) int {
	if c.limit <= 0 {
		return 0
	}
	return max(c.limit-log.Len(), 0)
}

// MaybeCompact compacts log if it is due and reports whether it did. When the
// model returns no usable summary, a digest of the latest plan stands in so
// the plan survives compaction.
func (c *Compactor) MaybeCompact(ctx context.Context, log *Log, view prompt.View) (bool, error) {
	if !c.Due(log) {
		return false, nil
	}
	text, err := c.prompts.Summary(prompt.SummaryInput{View: view, History: log.Text(), Limit: c.chars})
	if err != nil {
		return false, fmt.Errorf("build summary prompt: %w", err)
	}

	res := c.completer.Complete(ctx, llm.Request{
		Purpose: "summary",
		Prompt:  text,
		Params:  c.params,
		StopAt:  prompt.EndSummary,
	})
	if res.Err != nil {
		c.logger.Warn().Err(res.Err).Msg("summary request failed")
	}

	summary := res.Text
	if before, _, found := strings.Cut(summary, prompt.EndSummary); found {
		summary = before
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		c.logger.Warn().Msg("empty summary, keeping latest plan")
		summary = fallbackDigest(log)
	}
	summary = clipRunes(summary, c.chars)

	entries := log.Len()
	log.Compact(summary)
	c.logger.Info().Int("entries", entries).Int("summaries", len(log.summaries)).Msg("history compacted")
	return true, nil
}

func fallbackDigest(log *Log) string {
	if len(log.records) == 0 {
		return "- no progress recorded"
	}
	last := log.records[len(log.records)-1].Candidate
	return fmt.Sprintf("- plan: %s\n- next: %s", last.Plan, last.NextStep)
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
