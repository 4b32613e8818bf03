package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// parseValue stores JSON input as the decoded value and anything else as a string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a cached value as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withCache(func(cmd *cobra.Command, args []string, c *cache.Cache) error {
			val, ok := c.Get(args[0], entryOptions(cmd)...)
			if !ok {
				return errors.Newf("%s: not found", args[0])
			}
			buf, err := json.Marshal(val)
			if err != nil {
				return errors.Wrap(err, "encode value")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(buf))
			return nil
		}),
	}
	cmd.Flags().String("namespace", cache.DefaultNamespace, "namespace of the key")
	return cmd
}

func newSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value; JSON values are stored decoded",
		Args:  cobra.ExactArgs(2),
		RunE: withCache(func(cmd *cobra.Command, args []string, c *cache.Cache) error {
			opts := entryOptions(cmd)
			if cmd.Flags().Changed("ttl") {
				ttl, _ := cmd.Flags().GetDuration("ttl")
				opts = append(opts, cache.WithTTL(ttl))
			}
			if tags, _ := cmd.Flags().GetStringSlice("tag"); len(tags) > 0 {
				opts = append(opts, cache.WithTags(tags...))
			}
			if !c.Set(args[0], parseValue(args[1]), opts...) {
				return errors.Newf("%s: value was not cached", args[0])
			}
			tui.ShowSuccess(cmd.OutOrStdout(), "stored %s", args[0])
			return nil
		}),
	}
	cmd.Flags().String("namespace", cache.DefaultNamespace, "namespace of the key")
	cmd.Flags().Duration("ttl", 0, "time to live, 0 never expires (default: cache default TTL)")
	cmd.Flags().StringSlice("tag", nil, "tag to attach, repeatable")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: withCache(func(cmd *cobra.Command, args []string, c *cache.Cache) error {
			n := c.DeleteMulti(args, entryOptions(cmd)...)
			tui.ShowSuccess(cmd.OutOrStdout(), "deleted %d of %d keys", n, len(args))
			return nil
		}),
	}
	cmd.Flags().String("namespace", cache.DefaultNamespace, "namespace of the keys")
	return cmd
}

func formatTTL(info cache.EntryInfo) string {
	if info.TTLRemaining == nil {
		return "never"
	}
	return (time.Duration(*info.TTLRemaining * float64(time.Second))).Round(time.Second).String()
}
