package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// LLMStatus represents the current status of the review service.
type LLMStatus int

const (
	// LLMStatusIdle means no request has been made yet
	LLMStatusIdle LLMStatus = iota
	// LLMStatusInFlight means a review is currently being generated
	LLMStatusInFlight
	// LLMStatusSuccess means the last request was successful
	LLMStatusSuccess
	// LLMStatusError means the last request encountered an error
	LLMStatusError
)

// LLMIndicator holds the state for the review service indicator in the title bar.
type LLMIndicator struct {
	spinner spinner.Model
	status  LLMStatus
	label   string
}

// NewLLMIndicator creates a new LLM indicator with the given label
func NewLLMIndicator(label string) LLMIndicator {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SelectedStyle.UnsetBold()
	return LLMIndicator{
		spinner: s,
		status:  LLMStatusIdle,
		label:   label,
	}
}

// Start switches to in-flight and returns the command that animates the spinner.
func (i *LLMIndicator) Start() tea.Cmd {
	i.status = LLMStatusInFlight
	return i.spinner.Tick
}

// SetStatus updates the indicator status
func (i *LLMIndicator) SetStatus(status LLMStatus) {
	i.status = status
}

// GetStatus returns the current status
func (i LLMIndicator) GetStatus() LLMStatus {
	return i.status
}

// Update advances the spinner. Ticks stop once nothing is in flight.
func (i *LLMIndicator) Update(msg spinner.TickMsg) tea.Cmd {
	if i.status != LLMStatusInFlight {
		return nil
	}
	var cmd tea.Cmd
	i.spinner, cmd = i.spinner.Update(msg)
	return cmd
}

// View renders the indicator
func (i LLMIndicator) View() string {
	var statusIcon string
	switch i.status {
	case LLMStatusInFlight:
		statusIcon = i.spinner.View()
	case LLMStatusSuccess:
		statusIcon = SuccessStyle.Render(SymbolSuccess)
	case LLMStatusError:
		statusIcon = ErrorStyle.Render(SymbolError)
	default:
		statusIcon = DimStyle.Render(SymbolIdle)
	}

	return LabelStyle.Render(i.label+":") + statusIcon
}
