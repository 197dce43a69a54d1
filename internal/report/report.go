// Package report renders an inference result for the terminal: the input
// grid as shaded blocks and a per-class probability table with the top two
// classes highlighted.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/born-ml/digits/internal/engine"
	"github.com/born-ml/digits/internal/grid"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
)

// Options control rendering.
type Options struct {
	// Color enables ANSI colors; otherwise output is plain text.
	Color bool
	// BarWidth is the width of the probability bars, 0 for none.
	BarWidth int
}

// DefaultOptions renders with colors and 20-cell bars.
var DefaultOptions = Options{Color: true, BarWidth: 20}

// shades maps brightness to glyphs, darkest first.
var shades = []rune{' ', '░', '▒', '▓', '█'}

// Render writes g and res to w with DefaultOptions.
func Render(w io.Writer, g *grid.Grid, res *engine.Result) error {
	return RenderWith(w, g, res, DefaultOptions)
}

// RenderWith writes g (if not nil) and res to w.
func RenderWith(w io.Writer, g *grid.Grid, res *engine.Result, opts Options) error {
	r := lipgloss.NewRenderer(w)
	if !opts.Color {
		r.SetColorProfile(termenv.Ascii)
	}

	var sections []string
	if g != nil {
		sections = append(sections, Grid(r, g))
	}
	sections = append(sections, Table(r, res, opts.BarWidth))

	out := lipgloss.JoinHorizontal(lipgloss.Top, sections...)
	summary := fmt.Sprintf("prediction: %d (%.1f%%)", res.Prediction1, 100*res.Confidence())
	if res.Prediction2 != engine.NoPrediction {
		summary += fmt.Sprintf(", runner-up: %d", res.Prediction2)
	}
	if res.Elapsed > 0 {
		summary += fmt.Sprintf(", %s", res.Elapsed)
	}
	summary = r.NewStyle().Bold(true).Render(summary)

	_, err := fmt.Fprintln(w, out+"\n"+summary)
	return errors.Wrap(err, "writing report")
}

// Grid draws g inside a rounded border, two glyphs per cell.
func Grid(r *lipgloss.Renderer, g *grid.Grid) string {
	var sb strings.Builder
	for y, row := range g {
		for _, v := range row {
			glyph := shades[int(v)*(len(shades)-1)/255]
			sb.WriteRune(glyph)
			sb.WriteRune(glyph)
		}
		if y < grid.Size-1 {
			sb.WriteByte('\n')
		}
	}
	return r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("99")).
		Render(sb.String())
}

// Table lists every class with its probability. The top prediction is shown
// in red, the runner-up in bold.
func Table(r *lipgloss.Renderer, res *engine.Result, barWidth int) string {
	headerStyle := r.NewStyle().Reverse(true).Padding(0, 1).Align(lipgloss.Center)
	cellStyle := r.NewStyle().Padding(0, 1)
	firstStyle := cellStyle.Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).Bold(true)
	secondStyle := cellStyle.Bold(true)

	probs := res.Probabilities()
	t := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row < 0:
				return headerStyle
			case row == res.Prediction1:
				s = firstStyle
			case row == res.Prediction2:
				s = secondStyle
			default:
				s = cellStyle
			}
			if col == 1 {
				s = s.Align(lipgloss.Right)
			}
			return s
		})

	headers := []string{"Class", "Probability"}
	if barWidth > 0 {
		headers = append(headers, "")
	}
	t.Headers(headers...)
	for class, p := range probs {
		row := []string{fmt.Sprintf("%d", class), fmt.Sprintf("%.4f", p)}
		if barWidth > 0 {
			row = append(row, bar(p, barWidth))
		}
		t.Row(row...)
	}
	return t.String()
}

func bar(p float32, width int) string {
	n := int(p*float32(width) + 0.5)
	n = min(max(n, 0), width)
	return strings.Repeat("█", n) + strings.Repeat(" ", width-n)
}
