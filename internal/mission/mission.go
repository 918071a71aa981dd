// Package mission loads mission text, optionally preceded by YAML front
// matter carrying configuration overrides.
package mission

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned for a mission without text.
var ErrEmpty = errors.New("mission is empty")

const fence = "---"

// Mission is the goal handed to the model plus config overrides.
type Mission struct {
	Text string
	// Overrides are nested config keys, e.g. {"pane": {"cols": 120}}.
	Overrides map[string]any
}

// Load reads a mission file.
func Load(path string) (Mission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Mission{}, fmt.Errorf("read mission file: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return Mission{}, fmt.Errorf("parse mission file %s: %w", path, err)
	}
	return m, nil
}

// Parse splits optional front matter from the mission text.
func Parse(data []byte) (Mission, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	body := string(data)

	var m Mission
	if rest, ok := strings.CutPrefix(body, fence+"\n"); ok {
		front, text, found := cutFence(rest)
		if !found {
			return Mission{}, errors.New("unterminated front matter")
		}
		if err := yaml.Unmarshal([]byte(front), &m.Overrides); err != nil {
			return Mission{}, fmt.Errorf("decode front matter: %w", err)
		}
		body = text
	}

	m.Text = strings.TrimSpace(body)
	if m.Text == "" {
		return Mission{}, ErrEmpty
	}
	return m, nil
}

func cutFence(s string) (front, rest string, found bool) {
	if after, ok := strings.CutPrefix(s, fence+"\n"); ok {
		return "", after, true
	}
	if before, after, ok := strings.Cut(s, "\n"+fence+"\n"); ok {
		return before, after, true
	}
	if before, ok := strings.CutSuffix(strings.TrimRight(s, "\n"), "\n"+fence); ok {
		return before, "", true
	}
	return "", "", false
}
