package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerForegroundColor = lipgloss.AdaptiveColor{Light: "#a60853", Dark: "#F652A0"}
	bannerBorderColor     = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#AAAAAA"}
	bannerTitleColor      = lipgloss.AdaptiveColor{Light: "#00AAAA", Dark: "#00FFFF"}
	bannerMaxWidth        = 80
	bannerStyle           = lipgloss.NewStyle().
				Padding(1).
				AlignVertical(lipgloss.Top).
				AlignHorizontal(lipgloss.Left).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(bannerBorderColor)
	bannerBodyStyle  = lipgloss.NewStyle().Width(bannerMaxWidth).Foreground(bannerForegroundColor)
	bannerTitleStyle = lipgloss.NewStyle().AlignHorizontal(lipgloss.Center).Bold(true).Foreground(bannerTitleColor)
)

// Banner returns body framed under title. Without a terminal the title and
// body are returned unstyled.
func Banner(title string, body string) string {
	if !HasTTY {
		return title + "\n\n" + body
	}
	block := bannerTitleStyle.Render(title) + "\n\n" + bannerBodyStyle.Render(body)
	return bannerStyle.Render(block)
}

func ShowBanner(w io.Writer, title string, body string, clearScreen bool) {
	if clearScreen {
		ClearScreen()
	}
	fmt.Fprintln(w, Banner(title, body))
}

func BannerBodyStyle() lipgloss.Style {
	return bannerBodyStyle
}
