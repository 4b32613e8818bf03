package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	textStyleColor    = lipgloss.AdaptiveColor{Light: "#36EEE0", Dark: "#00FFFF"}
	mutedStyleColor   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	warningStyleColor = lipgloss.AdaptiveColor{Light: "#FFA500", Dark: "#FFA500"}
	errorStyleColor   = lipgloss.AdaptiveColor{Light: "#990000", Dark: "#FF0000"}
	okStyleColor      = lipgloss.AdaptiveColor{Light: "#009900", Dark: "#00FF00"}
	titleStyleColor   = lipgloss.AdaptiveColor{Light: "#071330", Dark: "#F652A0"}
)

func Title(text string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(titleStyleColor).Render(text)
}

func Bold(text string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(textStyleColor).Render(text)
}

func Muted(text string) string {
	return lipgloss.NewStyle().Foreground(mutedStyleColor).Render(text)
}

func Warning(text string) string {
	return lipgloss.NewStyle().Foreground(warningStyleColor).Render(text)
}

// Status colors a health status: ok green, warning orange, anything else red.
func Status(status string) string {
	color := errorStyleColor
	switch status {
	case "ok":
		color = okStyleColor
	case "warning":
		color = warningStyleColor
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(status)
}

// Bytes formats n with a binary unit, for example "1.50 MB".
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	units := []string{"KB", "MB", "GB", "TB"}
	i := -1
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.2f %s", value, units[i])
}

// MaxWidth truncates text to width columns, ending it with an ellipsis.
func MaxWidth(text string, width int) string {
	if lipgloss.Width(text) > width && width > 3 {
		runes := []rune(text)
		if len(runes) > width-3 {
			text = string(runes[:width-3]) + "..."
		}
	}
	return text
}
