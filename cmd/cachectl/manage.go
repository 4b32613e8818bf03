package main

import (
	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all entries, or those of one namespace",
		RunE: withCache(func(cmd *cobra.Command, args []string, c *cache.Cache) error {
			ns, _ := cmd.Flags().GetString("namespace")
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				what := "all entries"
				if ns != "" {
					what = "namespace " + ns
				}
				ok, err := tui.Ask("Remove "+what+"?", false)
				if err != nil {
					return err
				}
				if !ok {
					tui.ShowWarning(cmd.OutOrStdout(), "aborted, pass --yes to clear without a prompt")
					return nil
				}
			}
			var n int
			if ns != "" {
				n = c.ClearNamespace(ns)
			} else {
				n = c.Clear()
			}
			tui.ShowSuccess(cmd.OutOrStdout(), "removed %d entries", n)
			return nil
		}),
	}
	cmd.Flags().String("namespace", "", "only clear this namespace")
	cmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newInvalidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Remove entries by tag or key pattern",
		RunE: withCache(func(cmd *cobra.Command, args []string, c *cache.Cache) error {
			tag, _ := cmd.Flags().GetString("tag")
			pattern, _ := cmd.Flags().GetString("pattern")
			var n int
			switch {
			case tag != "" && pattern != "":
				return errors.New("use either --tag or --pattern")
			case tag != "":
				n = c.InvalidateByTag(tag)
			case pattern != "":
				n = c.InvalidateByPattern(pattern, entryOptions(cmd)...)
			default:
				return errors.New("one of --tag or --pattern is required")
			}
			tui.ShowSuccess(cmd.OutOrStdout(), "invalidated %d entries", n)
			return nil
		}),
	}
	cmd.Flags().String("tag", "", "remove entries carrying this tag")
	cmd.Flags().String("pattern", "", "remove keys containing this glob pattern")
	cmd.Flags().String("namespace", cache.DefaultNamespace, "namespace searched by --pattern")
	return cmd
}
