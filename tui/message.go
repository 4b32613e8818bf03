package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var (
	messageOKColor      = lipgloss.AdaptiveColor{Light: "#009900", Dark: "#00FF00"}
	messageOKStyle      = lipgloss.NewStyle().Foreground(messageOKColor)
	messageTextColor    = lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}
	messageTextStyle    = lipgloss.NewStyle().Foreground(messageTextColor)
	messageWarningColor = lipgloss.AdaptiveColor{Light: "#990000", Dark: "#FF0000"}
	messageWarningStyle = lipgloss.NewStyle().Foreground(messageWarningColor)
)

func ShowSuccess(w io.Writer, msg string, args ...any) {
	fmt.Fprintln(w, messageOKStyle.Render(" ✓ ")+messageTextStyle.Render(fmt.Sprintf(msg, args...)))
}

func ShowWarning(w io.Writer, msg string, args ...any) {
	fmt.Fprintln(w, messageWarningStyle.Render(" ✕ ")+messageTextStyle.Render(fmt.Sprintf(msg, args...)))
}

func ShowError(w io.Writer, msg string, args ...any) {
	fmt.Fprintln(w, messageWarningStyle.Render(" ⚠ ")+messageTextStyle.Render(fmt.Sprintf(msg, args...)))
}

// Ask prompts for a yes/no answer. Without a terminal defaultValue is
// returned without prompting.
func Ask(title string, defaultValue bool) (bool, error) {
	if !HasTTY {
		return defaultValue, nil
	}
	confirm := defaultValue
	if err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes!").
		Negative("No").
		Value(&confirm).
		Run(); err != nil {
		return false, err
	}
	return confirm, nil
}
