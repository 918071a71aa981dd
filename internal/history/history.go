// Package history keeps the running record of iterations shown to the model
// and condenses it once it grows past a limit.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/pllm/internal/action"
	"github.com/metalagman/pllm/internal/pane"
)

// Record is one completed iteration.
type Record struct {
	Time      time.Time
	Cursor    pane.Cursor
	Screen    string
	Candidate action.Candidate
	Critique  string
}

// Log is the append-only iteration history. Compact replaces the raw entries
// with a summary; summaries from earlier compactions are kept.
type Log struct {
	includeScreen bool
	records       []Record
	summaries     []string
}

// NewLog returns an empty log. includeScreen renders the console state of
// every record.
func NewLog(includeScreen bool) *Log {
	return &Log{includeScreen: includeScreen}
}

// Append adds a record.
func (l *Log) Append(r Record) {
	l.records = append(l.records, r)
}

// Len returns the number of records since the last compaction.
func (l *Log) Len() int {
	return len(l.records)
}

// Summaries returns all summaries in the order they were made.
func (l *Log) Summaries() []string {
	return append([]string(nil), l.summaries...)
}

// Compact drops the raw records and appends summary to the summaries.
func (l *Log) Compact(summary string) {
	l.summaries = append(l.summaries, summary)
	l.records = nil
}

// Text renders the log for a prompt: every summary, oldest first, then the
// records since the last compaction.
func (l *Log) Text() string {
	var b strings.Builder
	for i, s := range l.summaries {
		fmt.Fprintf(&b, "\nSummary %d of older entries:\n%s\n", i+1, s)
	}
	for _, r := range l.records {
		b.WriteString(l.render(r))
	}
	return b.String()
}

func (l *Log) render(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s]\n", r.Time.UTC().Format(time.RFC3339))
	if l.includeScreen {
		fmt.Fprintf(&b, "Cursor Position: %s\n", r.Cursor)
		fmt.Fprintf(&b, "Console State:\n%s\n", r.Screen)
	}
	c := r.Candidate
	c.CriticEvaluation = ""
	b.WriteString(c.JSON())
	b.WriteByte('\n')
	if r.Critique != "" {
		fmt.Fprintf(&b, "Evaluation of this step by an external critic: %s\n", r.Critique)
	}
	return b.String()
}
