// Package display renders journal entries for the terminal.
package display

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Tiliavir/trivial-journal/internal/model"
	"github.com/Tiliavir/trivial-journal/internal/timecalc"
)

const stampLayout = "2006-01-02 15:04"

// Item is one element of a rendered listing: either an entry or a warning
// about the bucket whose entries preceded it.
type Item struct {
	Entry   *model.Entry
	Warning *model.Warning
}

// Display consumes a listing in the order given.
type Display interface {
	Render(ctx context.Context, items iter.Seq[Item]) error
}

// Styles holds the lipgloss styles used by both displays.
type Styles struct {
	Stamp   lipgloss.Style
	Warning lipgloss.Style
	Footer  lipgloss.Style
}

// NewStyles returns coloured styles, or plain ones when color is false.
func NewStyles(color bool) Styles {
	if !color {
		return Styles{Stamp: lipgloss.NewStyle(), Warning: lipgloss.NewStyle(), Footer: lipgloss.NewStyle()}
	}
	return Styles{
		Stamp:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		Footer:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Format renders one item without a trailing newline.
func (s Styles) Format(it Item) string {
	switch {
	case it.Entry != nil:
		stamp := "[" + it.Entry.Timestamp.Format(stampLayout) + "]"
		return s.Stamp.Render(stamp) + " " + it.Entry.Body
	case it.Warning != nil:
		return s.Warning.Render("! " + it.Warning.Error())
	}
	return ""
}

// Plain streams items to a writer as they arrive. Days are separated by a
// blank line.
type Plain struct {
	Out    io.Writer
	Styles Styles
}

func (p *Plain) Render(ctx context.Context, items iter.Seq[Item]) error {
	n := 0
	var last time.Time
	for it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := p.Styles.Format(it)
		if line == "" {
			continue
		}
		if it.Entry != nil {
			if n > 0 && !timecalc.SameDay(last, it.Entry.Timestamp) {
				line = "\n" + line
			}
			last = it.Entry.Timestamp
		}
		if _, err := io.WriteString(p.Out, strings.TrimRight(line, "\n")+"\n"); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		if it.Entry != nil {
			n++
		}
	}
	if n == 0 {
		if _, err := io.WriteString(p.Out, "No entries found.\n"); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}
