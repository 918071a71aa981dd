// Package action defines the model's proposed action for one iteration and
// validates decoded responses against it.
package action

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/metalagman/pllm/internal/keys"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidCandidate is returned for responses that do not match the
// candidate contract.
var ErrInvalidCandidate = errors.New("invalid candidate")

//go:embed schema.json
var schemaJSON string

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
})

// Candidate is one proposed action.
type Candidate struct {
	Reasoning       string   `json:"reasoning"`
	MissionComplete bool     `json:"mission_complete"`
	Keypresses      []string `json:"keypresses"`
	// Plan is the persistent scratchpad carried between iterations.
	Plan string `json:"branch_map"`
	// NextStep is the next intended action.
	NextStep         string `json:"next_move"`
	CriticEvaluation string `json:"critic_evaluation,omitempty"`
}

// Validate checks a decoded JSON object against the candidate contract and
// decodes it.
func Validate(raw string) (Candidate, error) {
	schema, err := loadSchema()
	if err != nil {
		return Candidate{}, fmt.Errorf("load candidate schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, schemaErr := range result.Errors() {
			errs = append(errs, schemaErr.String())
		}
		sort.Strings(errs)
		return Candidate{}, fmt.Errorf("%w: %s", ErrInvalidCandidate, strings.Join(errs, "; "))
	}

	var c Candidate
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Candidate{}, fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}
	if c.Keypresses == nil {
		c.Keypresses = []string{}
	}
	return c, nil
}

// Keys parses the candidate's keypresses under policy.
func (c Candidate) Keys(policy keys.Policy) (keys.Sequence, error) {
	seq, err := keys.ParseSequence(c.Keypresses, policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}
	return seq, nil
}

// WithCritique returns a copy of c carrying the critic's evaluation.
func (c Candidate) WithCritique(text string) Candidate {
	c.CriticEvaluation = text
	return c
}

// JSON returns the compact JSON form of c.
func (c Candidate) JSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%+v", c)
	}
	return string(data)
}

// Brief returns c without the critic's evaluation, as shown to the model when
// asking it to revise a candidate.
func (c Candidate) Brief() string {
	c.CriticEvaluation = ""
	return c.JSON()
}

// PromoteKeypresses rewrites an object whose keypresses field is a single
// string into one holding a one-element list. Anything else is returned as is.
func PromoteKeypresses(raw string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return raw
	}
	var single string
	if err := json.Unmarshal(fields["keypresses"], &single); err != nil {
		return raw
	}
	list, err := json.Marshal([]string{single})
	if err != nil {
		return raw
	}
	fields["keypresses"] = list
	out, err := json.Marshal(fields)
	if err != nil {
		return raw
	}
	return string(out)
}
