// Package keys models the discrete key tokens a model may ask to type into a pane.
//
// A token is one of three variants: a literal string (normally a single
// printable character), a named key from a closed set, or a single character
// combined with a modifier. Parse is total: it returns a token or ErrUnknownKey.
package keys

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrUnknownKey is returned when a token is not part of the key vocabulary.
var ErrUnknownKey = errors.New("unknown key")

// Kind identifies the variant held by a Token.
type Kind int

const (
	KindLiteral Kind = iota
	KindNamed
	KindModified
)

// Named is a symbolic key.
type Named int

const (
	Enter Named = iota + 1
	Tab
	Backspace
	Escape
	Space
	Up
	Down
	Left
	Right
	Home
	End
	PageUp
	PageDown
	Insert
	Delete
)

// Modifier is a key modifier applied to one character.
type Modifier int

const (
	Ctrl Modifier = iota + 1
	Alt
	Shift
)

type namedSpec struct {
	name string
	tmux string
}

var namedKeys = map[Named]namedSpec{
	Enter:     {"Enter", "Enter"},
	Tab:       {"Tab", "Tab"},
	Backspace: {"BSpace", "BSpace"},
	Escape:    {"Escape", "Escape"},
	Space:     {"Space", "Space"},
	Up:        {"Up", "Up"},
	Down:      {"Down", "Down"},
	Left:      {"Left", "Left"},
	Right:     {"Right", "Right"},
	Home:      {"Home", "Home"},
	End:       {"End", "End"},
	PageUp:    {"PageUp", "PPage"},
	PageDown:  {"PageDown", "NPage"},
	Insert:    {"Insert", "IC"},
	Delete:    {"Delete", "DC"},
}

// aliases maps every accepted spelling (lower-cased) to its named key.
var aliases = map[string]Named{
	"enter":     Enter,
	"return":    Enter,
	"c-m":       Enter,
	"tab":       Tab,
	"bspace":    Backspace,
	"backspace": Backspace,
	"escape":    Escape,
	"esc":       Escape,
	"space":     Space,
	"up":        Up,
	"down":      Down,
	"left":      Left,
	"right":     Right,
	"home":      Home,
	"end":       End,
	"pageup":    PageUp,
	"pgup":      PageUp,
	"ppage":     PageUp,
	"pagedown":  PageDown,
	"pgdn":      PageDown,
	"npage":     PageDown,
	"insert":    Insert,
	"ic":        Insert,
	"delete":    Delete,
	"dc":        Delete,
}

var modifierPrefixes = []struct {
	prefix string
	mod    Modifier
}{
	{"c-", Ctrl},
	{"ctrl+", Ctrl},
	{"ctrl-", Ctrl},
	{"m-", Alt},
	{"alt+", Alt},
	{"alt-", Alt},
	{"s-", Shift},
	{"shift+", Shift},
	{"shift-", Shift},
}

// String returns the canonical spelling of the named key.
func (n Named) String() string {
	if spec, ok := namedKeys[n]; ok {
		return spec.name
	}
	return fmt.Sprintf("Named(%d)", int(n))
}

// String returns the short prefix used for the modifier.
func (m Modifier) String() string {
	switch m {
	case Ctrl:
		return "C"
	case Alt:
		return "M"
	case Shift:
		return "S"
	default:
		return fmt.Sprintf("Modifier(%d)", int(m))
	}
}

// Token is one discrete key event.
type Token struct {
	kind  Kind
	text  string
	named Named
	mod   Modifier
	char  rune
}

// Literal returns a token that types s verbatim.
func Literal(s string) Token {
	return Token{kind: KindLiteral, text: s}
}

// Key returns a named key token.
func Key(n Named) Token {
	return Token{kind: KindNamed, named: n}
}

// Modified returns a token for char pressed together with mod.
func Modified(mod Modifier, char rune) Token {
	return Token{kind: KindModified, mod: mod, char: char}
}

// Kind reports which variant t holds.
func (t Token) Kind() Kind { return t.kind }

// Text returns the literal text of a KindLiteral token.
func (t Token) Text() string { return t.text }

// Named returns the key of a KindNamed token.
func (t Token) Named() Named { return t.named }

// Modifier returns the modifier and character of a KindModified token.
func (t Token) Modifier() (Modifier, rune) { return t.mod, t.char }

// String returns the canonical spelling of t.
func (t Token) String() string {
	switch t.kind {
	case KindNamed:
		return t.named.String()
	case KindModified:
		return t.mod.String() + "-" + string(t.char)
	default:
		return t.text
	}
}

// Tmux returns the argument for tmux send-keys and whether it must be sent
// with the literal flag.
func (t Token) Tmux() (string, bool) {
	switch t.kind {
	case KindNamed:
		return namedKeys[t.named].tmux, false
	case KindModified:
		return t.mod.String() + "-" + string(t.char), false
	default:
		return t.text, true
	}
}

// Parse converts one model-provided key string into a Token.
// A single space is always parsed as the Space key.
func Parse(s string) (Token, error) {
	if s == "" {
		return Token{}, fmt.Errorf("%w: empty token", ErrUnknownKey)
	}
	if utf8.RuneCountInString(s) == 1 {
		if s == " " {
			return Key(Space), nil
		}
		return Literal(s), nil
	}

	lower := strings.ToLower(s)
	if n, ok := aliases[lower]; ok {
		return Key(n), nil
	}
	for _, p := range modifierPrefixes {
		if !strings.HasPrefix(lower, p.prefix) {
			continue
		}
		rest := s[len(p.prefix):]
		if utf8.RuneCountInString(rest) != 1 {
			break
		}
		r, _ := utf8.DecodeRuneInString(rest)
		if p.mod == Ctrl {
			r = toLower(r)
		}
		return Modified(p.mod, r), nil
	}
	return Token{}, fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// Names returns the canonical spellings of all named keys in declaration order.
func Names() []string {
	out := make([]string, 0, len(namedKeys))
	for n := Enter; n <= Delete; n++ {
		out = append(out, n.String())
	}
	return out
}
