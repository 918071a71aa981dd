// Package prompt assembles the text sent to the completion service.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/metalagman/pllm/internal/action"
	"github.com/metalagman/pllm/internal/pane"
)

// Markers the templates ask the model to emit when a free-text answer is done.
const (
	EndEvaluation = "END_EVALUATION"
	EndSelect     = "END_SELECT"
	EndSummary    = "END_SUMMARY"
	NoChange      = "NO_CHANGE"
)

// View is the state every prompt is built from.
type View struct {
	Mission string
	Screen  pane.Capture
}

// MainInput asks for a new candidate action.
type MainInput struct {
	View
	History          string
	PreviousNextStep string
	// StepsLeft is the number of iterations before the history is compacted.
	StepsLeft int
}

// CritiqueInput asks for an evaluation of one candidate.
type CritiqueInput struct {
	View
	Candidate action.Candidate
}

// SelectInput asks the model to pick the best candidate by number.
type SelectInput struct {
	View
	Candidates       []action.Candidate
	ShowCritique     bool
	PreviousNextStep string
}

// ApplyInput asks the model to fold critique into the selected candidate.
type ApplyInput struct {
	View
	Candidates []action.Candidate
	// Selected is the 1-based index into Candidates.
	Selected int
}

// SummaryInput asks for a condensed digest of the history.
type SummaryInput struct {
	View
	History string
	Limit   int
}

// Assembler builds prompts. The wording is opaque to the rest of the program.
type Assembler interface {
	Main(in MainInput) (string, error)
	Critique(in CritiqueInput) (string, error)
	Select(in SelectInput) (string, error)
	ApplyCritic(in ApplyInput) (string, error)
	Summary(in SummaryInput) (string, error)
}

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Templates is the default Assembler backed by embedded text templates.
type Templates struct {
	t *template.Template
}

// NewTemplates parses the embedded templates.
func NewTemplates() (*Templates, error) {
	t, err := template.New("prompts").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
		"markers": func() map[string]string {
			return map[string]string{
				"EndEvaluation": EndEvaluation,
				"EndSelect":     EndSelect,
				"EndSummary":    EndSummary,
				"NoChange":      NoChange,
			}
		},
	}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	return &Templates{t: t}, nil
}

func (p *Templates) Main(in MainInput) (string, error) { return p.render("main.tmpl", in) }

func (p *Templates) Critique(in CritiqueInput) (string, error) { return p.render("critique.tmpl", in) }

func (p *Templates) Select(in SelectInput) (string, error) { return p.render("select.tmpl", in) }

func (p *Templates) ApplyCritic(in ApplyInput) (string, error) { return p.render("apply.tmpl", in) }

func (p *Templates) Summary(in SummaryInput) (string, error) { return p.render("summary.tmpl", in) }

func (p *Templates) render(name string, data any) (string, error) {
	var b bytes.Buffer
	if err := p.t.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}
