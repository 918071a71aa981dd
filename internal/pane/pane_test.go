package pane

import (
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_PadsAndTruncates(t *testing.T) {
	t.Parallel()

	g := Geometry{Cols: 5, Rows: 3}
	lines := Normalize("ab\nabcdefgh\n", g)

	assert.Equal(t, []string{"ab   ", "abcde", "     "}, lines)
}

func TestNormalize_DropsExtraRows(t *testing.T) {
	t.Parallel()

	lines := Normalize("1\n2\n3\n4", Geometry{Cols: 2, Rows: 2})
	assert.Equal(t, []string{"1 ", "2 "}, lines)
}

func TestNormalize_EmptyInput(t *testing.T) {
	t.Parallel()

	lines := Normalize("", Geometry{Cols: 3, Rows: 2})
	assert.Equal(t, []string{"   ", "   "}, lines)
}

func TestNormalize_AlwaysExactGeometry(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	alphabet := []rune("abc xyz─│█é\t")
	for range 500 {
		g := Geometry{Cols: 1 + rng.IntN(100), Rows: 1 + rng.IntN(40)}
		var b strings.Builder
		for range rng.IntN(60) {
			for range rng.IntN(150) {
				b.WriteRune(alphabet[rng.IntN(len(alphabet))])
			}
			b.WriteByte('\n')
		}

		lines := Normalize(b.String(), g)
		require.Len(t, lines, g.Rows)
		for _, line := range lines {
			require.Equal(t, g.Cols, utf8.RuneCountInString(line))
		}
	}
}

func TestCaptureRender_NumbersLinesAndMarksCursor(t *testing.T) {
	t.Parallel()

	c := Capture{
		Lines:    []string{"$ ls  ", "      "},
		Cursor:   Cursor{X: 2, Y: 0},
		Geometry: Geometry{Cols: 6, Rows: 2},
	}

	assert.Equal(t, " 0 |$ █s  \n 1 |      ", c.Render())
	assert.Equal(t, "$ ls  \n      ", c.Text())
}
