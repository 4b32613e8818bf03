package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/monitor"
	"github.com/agentuity/go-cache/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statsRows(s cache.StatsSnapshot) [][]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	return [][]string{
		{"Entries", fmt.Sprintf("%d / %d", s.CacheSize, s.MaxSize)},
		{"Utilization", f(s.Utilization) + "%"},
		{"Memory", fmt.Sprintf("%s / %s", tui.Bytes(s.TotalSizeBytes), tui.Bytes(s.MaxMemoryBytes))},
		{"Memory utilization", f(s.MemoryUtilization) + "%"},
		{"Hit rate", f(s.HitRate) + "%"},
		{"Hits", strconv.FormatInt(s.Hits, 10)},
		{"Misses", strconv.FormatInt(s.Misses, 10)},
		{"Sets", strconv.FormatInt(s.Sets, 10)},
		{"Deletes", strconv.FormatInt(s.Deletes, 10)},
		{"Expirations", strconv.FormatInt(s.Expirations, 10)},
		{"Evictions", strconv.FormatInt(s.Evictions, 10)},
		{"Namespaces", strconv.Itoa(s.NamespacesCount)},
		{"Tags", strconv.Itoa(s.TagsCount)},
	}
}

func newStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: withCache(func(cmd *cobra.Command, args []string, c *cache.Cache) error {
			s := c.Stats()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd, s)
			}
			tui.Table(cmd.OutOrStdout(), []string{"Metric", "Value"}, statsRows(s))
			for _, ns := range c.Namespaces() {
				n := c.NamespaceStats(ns)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d entries, %s, %d hits\n", tui.Bold(ns), n.ItemsCount, tui.Bytes(n.TotalSizeBytes), n.TotalHits)
			}
			return nil
		}),
	}
	cmd.Flags().Bool("json", false, "print the snapshot as JSON")
	return cmd
}

func newReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the text report",
		RunE: withCache(func(cmd *cobra.Command, args []string, c *cache.Cache) error {
			tui.ShowBanner(cmd.OutOrStdout(), "Cache "+c.ID(), c.Report(), false)
			return nil
		}),
	}
}

func newTopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List entries ordered by hits, size or age",
		RunE: withCache(func(cmd *cobra.Command, args []string, c *cache.Cache) error {
			limit, _ := cmd.Flags().GetInt("limit")
			sortBy, _ := cmd.Flags().GetString("sort")
			switch cache.SortBy(sortBy) {
			case cache.SortByHits, cache.SortBySize, cache.SortByAge:
			default:
				return errors.Newf("unknown sort order %q", sortBy)
			}
			items := c.TopItems(limit, cache.SortBy(sortBy))
			if len(items) == 0 {
				tui.ShowWarning(cmd.OutOrStdout(), "cache is empty")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					tui.MaxWidth(item.Key, 48),
					item.Namespace,
					strconv.Itoa(item.Hits),
					tui.Bytes(item.SizeBytes),
					formatTTL(item),
				})
			}
			tui.Table(cmd.OutOrStdout(), []string{"Key", "Namespace", "Hits", "Size", "TTL"}, rows)
			return nil
		}),
	}
	cmd.Flags().Int("limit", 10, "number of entries, 0 for all")
	cmd.Flags().String("sort", string(cache.SortByHits), "sort order: hits, size or age")
	return cmd
}

func newExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Write statistics and top entries to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: withCache(func(cmd *cobra.Command, args []string, c *cache.Cache) error {
			if !c.ExportStats(args[0]) {
				return errors.Newf("failed to export statistics to %s", args[0])
			}
			tui.ShowSuccess(cmd.OutOrStdout(), "exported statistics to %s", args[0])
			return nil
		}),
	}
}

func showHealth(cmd *cobra.Command, h monitor.Health) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", tui.Title("Status:"), tui.Status(string(h.Status)))
	for _, issue := range h.Issues {
		tui.ShowError(out, "%s", issue)
	}
	fmt.Fprintln(out, tui.Muted(fmt.Sprintf("host memory %.1f%% used", h.HostMemoryPercent)))
	if h.DiskFreeBytes > 0 {
		fmt.Fprintln(out, tui.Muted("disk free "+tui.Bytes(int64(h.DiskFreeBytes))))
	}
}

func newHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Evaluate cache health",
		RunE: withCache(func(cmd *cobra.Command, args []string, c *cache.Cache) error {
			var opts []monitor.Option
			if dir, _ := cmd.Flags().GetString("disk"); dir != "" {
				opts = append(opts, monitor.WithDiskPath(dir))
			}
			m := monitor.New(c, opts...)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd, m.Metrics())
			}
			showHealth(cmd, m.Health())
			return nil
		}),
	}
	cmd.Flags().Bool("json", false, "print flat metrics as JSON")
	cmd.Flags().String("disk", "", "report free space of this directory")
	return cmd
}
