// Package tui renders cachectl output. Styling is only applied for
// terminals; interactive widgets fall back to their defaults otherwise.
package tui

import (
	"os"

	"github.com/mattn/go-isatty"
)

var (
	HasTTY = isatty.IsTerminal(os.Stdout.Fd())
)
