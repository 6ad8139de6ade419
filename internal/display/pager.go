package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type pagerKeys struct {
	Top     key.Binding
	Bottom  key.Binding
	NextDay key.Binding
	PrevDay key.Binding
	Quit    key.Binding
}

var keys = pagerKeys{
	Top: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	NextDay: key.NewBinding(
		key.WithKeys("l", "right"),
		key.WithHelp("l", "next day"),
	),
	PrevDay: key.NewBinding(
		key.WithKeys("h", "left"),
		key.WithHelp("h", "previous day"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Pager shows items in a scrollable full-screen view. Items are pulled from
// the listing only when the user scrolls close to the end of what has been
// loaded, so a long journal is never read up front.
type Pager struct {
	Styles Styles

	// Input and Output override the terminal, for tests.
	Input  io.Reader
	Output io.Writer
}

func (p *Pager) Render(ctx context.Context, items iter.Seq[Item]) error {
	next, stop := iter.Pull(items)
	defer stop()

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.Input != nil {
		opts = append(opts, tea.WithInput(p.Input))
	}
	if p.Output != nil {
		opts = append(opts, tea.WithOutput(p.Output))
	} else {
		opts = append(opts, tea.WithAltScreen())
	}

	if _, err := tea.NewProgram(newPagerModel(next, p.Styles), opts...).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("pager: %w", err)
	}
	return nil
}

type pagerModel struct {
	next   func() (Item, bool)
	styles Styles

	vp        viewport.Model
	ready     bool
	items     []Item
	lines     []string
	entries   int
	exhausted bool

	// dayStarts holds the first line of every day loaded so far.
	dayStarts []int
	lastDay   string
}

func newPagerModel(next func() (Item, bool), styles Styles) pagerModel {
	return pagerModel{next: next, styles: styles}
}

func (m pagerModel) Init() tea.Cmd {
	return nil
}

func (m pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-1, 1)
		if !m.ready {
			m.vp = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = height
		}
		m.relayout()
		m.load(false)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Top):
			m.vp.GotoTop()
			return m, nil
		case key.Matches(msg, keys.Bottom):
			m.load(true)
			m.vp.GotoBottom()
			return m, nil
		case key.Matches(msg, keys.NextDay):
			m.nextDay()
			return m, nil
		case key.Matches(msg, keys.PrevDay):
			m.prevDay()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	m.load(false)
	return m, cmd
}

// load pulls items until two screens below the current offset are filled,
// or until the listing ends when all is set.
func (m *pagerModel) load(all bool) {
	if !m.ready {
		return
	}
	want := m.vp.YOffset + 2*m.vp.Height
	added := false
	for !m.exhausted && (all || len(m.lines) < want) {
		if m.pull() {
			added = true
		}
	}
	if added {
		m.vp.SetContent(strings.Join(m.lines, "\n"))
	}
}

// pull appends the next item, reporting false once the listing is exhausted.
func (m *pagerModel) pull() bool {
	it, ok := m.next()
	if !ok {
		m.exhausted = true
		return false
	}
	m.add(it)
	return true
}

func (m *pagerModel) add(it Item) {
	m.items = append(m.items, it)
	if it.Entry != nil {
		if day := it.Entry.Date(); day != m.lastDay {
			m.dayStarts = append(m.dayStarts, len(m.lines))
			m.lastDay = day
		}
		m.entries++
	}
	m.lines = append(m.lines, m.render(it)...)
}

// relayout re-wraps every loaded item for the current width.
func (m *pagerModel) relayout() {
	items := m.items
	m.items, m.lines, m.dayStarts, m.lastDay, m.entries = nil, nil, nil, "", 0
	for _, it := range items {
		m.add(it)
	}
	m.vp.SetContent(strings.Join(m.lines, "\n"))
}

// nextDay scrolls to the first line of the day after the top line, pulling
// items until that day is loaded. It stays put on the last day.
func (m *pagerModel) nextDay() {
	target := -1
	for target < 0 {
		for _, start := range m.dayStarts {
			if start > m.vp.YOffset {
				target = start
				break
			}
		}
		if target < 0 && (m.exhausted || !m.pull()) {
			break
		}
	}
	m.vp.SetContent(strings.Join(m.lines, "\n"))
	if target < 0 {
		return
	}
	m.vp.SetYOffset(target)
	m.load(false)
	m.vp.SetYOffset(target)
}

// prevDay scrolls to the first line of the day before the top line.
func (m *pagerModel) prevDay() {
	target := 0
	for _, start := range m.dayStarts {
		if start >= m.vp.YOffset {
			break
		}
		target = start
	}
	m.vp.SetYOffset(target)
}

func (m *pagerModel) render(it Item) []string {
	s := m.styles.Format(it)
	if m.vp.Width > 0 {
		s = lipgloss.NewStyle().Width(m.vp.Width).Render(s)
	}
	return strings.Split(s, "\n")
}

func (m pagerModel) View() string {
	if !m.ready {
		return "loading..."
	}
	count := fmt.Sprintf("%d entries", m.entries)
	if !m.exhausted {
		count += "+"
	}
	if m.exhausted && m.entries == 0 {
		count = "No entries found."
	}
	footer := fmt.Sprintf("%s  %3.f%%  j/k scroll  h/l day  g/G top/bottom  q quit", count, m.vp.ScrollPercent()*100)
	return m.vp.View() + "\n" + m.styles.Footer.Render(footer)
}
