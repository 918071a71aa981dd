// Package console renders the operator's view of a running mission.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/metalagman/pllm/internal/agent"
	"github.com/metalagman/pllm/internal/pane"
)

// Console receives loop progress for display.
type Console interface {
	Screen(iteration int, title string, c pane.Capture)
	Decision(iteration int, d agent.Decision)
	Compacted(summary string)
}

type styles struct {
	panel      lipgloss.Style
	panelTitle lipgloss.Style
	label      lipgloss.Style
	value      lipgloss.Style
	done       lipgloss.Style
	muted      lipgloss.Style
}

func newStyles() styles {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	muted := lipgloss.Color("#9ca3d8")
	return styles{
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().Bold(true).Foreground(blue),
		label:      lipgloss.NewStyle().Bold(true),
		value:      lipgloss.NewStyle(),
		done:       lipgloss.NewStyle().Bold(true).Foreground(mint),
		muted:      lipgloss.NewStyle().Foreground(muted),
	}
}

// Panel writes bordered panels to an io.Writer.
type Panel struct {
	w     io.Writer
	style styles
}

// NewPanel returns a Panel writing to w.
func NewPanel(w io.Writer) *Panel {
	return &Panel{w: w, style: newStyles()}
}

// Screen renders a capture with line numbers and the cursor marker.
func (p *Panel) Screen(iteration int, title string, c pane.Capture) {
	header := p.style.panelTitle.Render(fmt.Sprintf("#%d %s", iteration, title))
	footer := p.style.muted.Render("cursor " + c.Cursor.String())
	body := lipgloss.JoinVertical(lipgloss.Left, header, c.Render(), footer)
	_, _ = fmt.Fprintln(p.w, p.style.panel.Render(body))
}

// Decision renders the chosen candidate.
func (p *Panel) Decision(iteration int, d agent.Decision) {
	c := d.Candidate
	rows := []string{
		p.style.panelTitle.Render(fmt.Sprintf("#%d decision %d/%d", iteration, d.Index, len(d.Pool))),
		p.field("reasoning", c.Reasoning),
		p.field("keys", d.Keys.String()),
		p.field("plan", c.Plan),
		p.field("next", c.NextStep),
	}
	if c.CriticEvaluation != "" {
		rows = append(rows, p.field("critic", c.CriticEvaluation))
	}
	if d.Revised {
		rows = append(rows, p.style.muted.Render("revised after critique"))
	}
	if c.MissionComplete {
		rows = append(rows, p.style.done.Render("mission complete"))
	}
	_, _ = fmt.Fprintln(p.w, p.style.panel.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}

// Compacted renders a fresh history summary.
func (p *Panel) Compacted(summary string) {
	body := lipgloss.JoinVertical(lipgloss.Left, p.style.panelTitle.Render("history summary"), summary)
	_, _ = fmt.Fprintln(p.w, p.style.panel.Render(body))
}

func (p *Panel) field(name, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = "-"
	}
	return p.style.label.Render(name+": ") + p.style.value.Render(value)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Screen(int, string, pane.Capture) {}
func (Nop) Decision(int, agent.Decision)     {}
func (Nop) Compacted(string)                 {}
