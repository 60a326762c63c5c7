package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
)

const maxSelectorRows = 8

// selector lets the user pick a repository by typing a path or choosing one
// of the repositories discovered under the configured search roots.
type selector struct {
	input      textinput.Model
	candidates []string
	matches    []string
	cursor     int
	active     bool
}

func newSelector() selector {
	ti := textinput.New()
	ti.Placeholder = "path to a git repository"
	ti.Prompt = SymbolCursor + " "
	ti.CharLimit = 4096
	return selector{input: ti}
}

func (s *selector) open(current string) tea.Cmd {
	s.active = true
	s.cursor = 0
	s.input.SetValue("")
	s.input.Placeholder = lo.Ternary(current != "", current, "path to a git repository")
	s.refilter()
	return s.input.Focus()
}

func (s *selector) close() {
	s.active = false
	s.input.Blur()
}

func (s *selector) setCandidates(candidates []string) {
	s.candidates = candidates
	s.refilter()
}

func (s *selector) refilter() {
	query := strings.TrimSpace(s.input.Value())
	if query == "" {
		s.matches = s.candidates
	} else {
		found := fuzzy.Find(query, s.candidates)
		s.matches = lo.Map(found, func(m fuzzy.Match, _ int) string { return m.Str })
	}
	s.cursor = lo.Clamp(s.cursor, 0, lo.Max([]int{len(s.matches) - 1, 0}))
}

func (s *selector) move(delta int) {
	if len(s.matches) == 0 {
		s.cursor = 0
		return
	}
	s.cursor = (s.cursor + delta + len(s.matches)) % len(s.matches)
}

// choice returns the highlighted suggestion, or the typed text when nothing
// matches it.
func (s *selector) choice() string {
	if len(s.matches) > 0 {
		return s.matches[s.cursor]
	}
	return strings.TrimSpace(s.input.Value())
}

func (s *selector) update(msg tea.Msg) tea.Cmd {
	before := s.input.Value()
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	if s.input.Value() != before {
		s.cursor = 0
		s.refilter()
	}
	return cmd
}

func (s selector) view(width int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Select repository"))
	b.WriteString("\n\n")
	s.input.Width = lo.Max([]int{width - 4, 10})
	b.WriteString(s.input.View())
	b.WriteString("\n\n")

	if len(s.matches) == 0 {
		if len(s.candidates) == 0 {
			b.WriteString(DimStyle.Render("type a path and press enter"))
		} else {
			b.WriteString(DimStyle.Render("no matching repositories; enter opens the typed path"))
		}
		return b.String()
	}

	// keep the cursor inside the visible window
	start := 0
	if s.cursor >= maxSelectorRows {
		start = s.cursor - maxSelectorRows + 1
	}
	end := lo.Min([]int{start + maxSelectorRows, len(s.matches)})
	for i := start; i < end; i++ {
		if i == s.cursor {
			b.WriteString(SelectedStyle.Render(SymbolCursor + " " + s.matches[i]))
		} else {
			b.WriteString("  " + s.matches[i])
		}
		b.WriteString("\n")
	}
	if len(s.matches) > end {
		b.WriteString(DimStyle.Render("  …"))
	}
	return strings.TrimRight(b.String(), "\n")
}
