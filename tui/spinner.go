package tui

import (
	"context"

	"github.com/charmbracelet/huh/spinner"
	"github.com/cockroachdb/errors"
)

// ShowSpinner displays a spinner titled title while action runs. Without a
// terminal action runs directly. ShowSpinner always waits for action to
// return, even when ctx is canceled first.
func ShowSpinner(ctx context.Context, title string, action func()) error {
	if !HasTTY {
		action()
		return nil
	}
	spinCtx, stop := context.WithCancel(ctx)
	defer stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stop()
		action()
	}()
	err := spinner.New().Context(spinCtx).Title(title).Run()
	<-done
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		err = nil
	}
	return err
}
