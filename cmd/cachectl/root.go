package main

import (
	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/config"
	"github.com/agentuity/go-cache/env"
	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and manage a cache",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "path to a YAML config file")
	flags.String("env-file", ".env", "dotenv file with CACHE_* overrides")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "log format (console or json)")

	root.AddCommand(
		newGetCommand(),
		newSetCommand(),
		newDeleteCommand(),
		newStatsCommand(),
		newReportCommand(),
		newTopCommand(),
		newExportCommand(),
		newHealthCommand(),
		newClearCommand(),
		newInvalidateCommand(),
		newDemoCommand(),
	)
	return root
}

// loadConfig reads the config file, if any, then applies CACHE_* overrides
// from the process environment and the dotenv file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	envFile, _ := cmd.Flags().GetString("env-file")
	vars, err := env.ParseFile(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env.NewSource(vars).Lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openCache builds the configured cache. The caller closes it, which saves
// every live entry to the configured store.
func openCache(cmd *cobra.Command) (*cache.Cache, logger.Logger, error) {
	log := env.NewLogger(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	c, err := cfg.NewCache(cmd.Context(), log)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open cache")
	}
	return c, log, nil
}

// withCache runs fn against the configured cache and closes it afterwards.
func withCache(fn func(cmd *cobra.Command, args []string, c *cache.Cache) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, log, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := c.Close(); cerr != nil {
				log.Warn("failed to close cache: %s", cerr)
			}
		}()
		return fn(cmd, args, c)
	}
}

func entryOptions(cmd *cobra.Command) []cache.EntryOption {
	ns, _ := cmd.Flags().GetString("namespace")
	return []cache.EntryOption{cache.WithNamespace(ns)}
}
