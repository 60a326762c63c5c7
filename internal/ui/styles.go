package ui

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	ColorCyan   = lipgloss.Color("12") // Title, commit hash
	ColorYellow = lipgloss.Color("11") // Warnings, in-flight work
	ColorGreen  = lipgloss.Color("10") // Success indicator
	ColorRed    = lipgloss.Color("9")  // Error indicator
	ColorGray   = lipgloss.Color("8")  // Dim/secondary (timing, meta info)
	ColorPink   = lipgloss.Color("205")
	ColorLabel  = lipgloss.Color("243")
)

const (
	SymbolIdle    = "○"
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolInfo    = "→"
	SymbolCursor  = "›"
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorCyan)

	HashStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)

	WarnStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	ErrorStyle = lipgloss.NewStyle().Foreground(ColorRed)

	DimStyle = lipgloss.NewStyle().Foreground(ColorGray)

	LabelStyle = lipgloss.NewStyle().Foreground(ColorLabel)

	SelectedStyle = lipgloss.NewStyle().Foreground(ColorPink).Bold(true)

	RuleStyle = lipgloss.NewStyle().Foreground(ColorGray)
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusSuccess
	statusWarn
	statusError
)

// styledStatus prefixes a status message with a colored symbol.
func styledStatus(kind statusKind, text string) string {
	switch kind {
	case statusSuccess:
		return SuccessStyle.Render(SymbolSuccess) + " " + text
	case statusWarn:
		return WarnStyle.Render(SymbolInfo) + " " + WarnStyle.Render(text)
	case statusError:
		return ErrorStyle.Render(SymbolError) + " " + ErrorStyle.Render(text)
	default:
		return DimStyle.Render(SymbolInfo) + " " + text
	}
}
