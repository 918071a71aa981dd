package llm

import "strings"

// Decoder extracts the first balanced top-level JSON object from streamed
// content. Content outside the object is ignored; the plain text of the
// whole stream is kept for callers that want it.
//
// Braces are counted without regard to JSON string context, so a '}' inside
// a string value closes the object early and the result fails validation.
type Decoder struct {
	depth  int
	buf    strings.Builder
	text   strings.Builder
	stopAt string
	done   bool
}

// NewDecoder returns a decoder. When stopAt is non-empty, decoding ends as
// soon as the plain text contains it.
func NewDecoder(stopAt string) *Decoder {
	return &Decoder{stopAt: stopAt}
}

// Feed consumes one content fragment. It reports done once an object is
// complete or the stop marker was seen; kind tells which. Feed must not be
// called again after done.
func (d *Decoder) Feed(content string) (kind Kind, value string, done bool) {
	if d.done {
		return KindText, d.text.String(), true
	}
	d.text.WriteString(content)
	if d.stopAt != "" && strings.Contains(d.text.String(), d.stopAt) {
		d.done = true
		return KindText, d.text.String(), true
	}

	for _, r := range content {
		switch {
		case r == '{':
			d.depth++
			d.buf.WriteRune(r)
		case r == '}':
			if d.depth == 0 {
				continue
			}
			d.depth--
			d.buf.WriteRune(r)
			if d.depth == 0 {
				d.done = true
				return KindObject, d.buf.String(), true
			}
		case d.depth == 0:
			// text outside the object
		default:
			d.buf.WriteRune(r)
		}
	}
	return KindText, "", false
}

// Text returns all content fed so far.
func (d *Decoder) Text() string {
	return d.text.String()
}

// Depth returns the current brace depth.
func (d *Decoder) Depth() int {
	return d.depth
}
