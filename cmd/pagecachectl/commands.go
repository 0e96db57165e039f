package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/any-hub/pagecache/internal/config"
	"github.com/any-hub/pagecache/internal/pagecache"
	"github.com/any-hub/pagecache/internal/version"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitRuntimeError = 4
)

// Run builds the command tree, executes it with args and returns an exit code.
func Run(args []string) int {
	root := newRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var rerr runtimeError
		if errors.As(err, &rerr) {
			return ExitRuntimeError
		}
		return ExitUsageError
	}
	return ExitSuccess
}

// runtimeError marks failures that happened after arguments were accepted.
type runtimeError struct{ err error }

func (e runtimeError) Error() string { return e.err.Error() }
func (e runtimeError) Unwrap() error { return e.err }

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "pagecachectl",
		Short:        "Maintain a pagecache directory",
		Long:         "pagecachectl clears, inspects and purges pages stored by the pagecache server.",
		Version:      version.Full(),
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the pagecache config file")

	openCache := func() (*pagecache.Cache, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, runtimeError{err}
		}
		cache, err := pagecache.New(cfg.CacheOptions())
		if err != nil {
			return nil, runtimeError{err}
		}
		return cache, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached page",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cache, err := openCache()
				if err != nil {
					return err
				}
				if !cache.Cleanup() {
					return runtimeError{fmt.Errorf("failed to clear %s", cache.Root())}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", cache.Root())
				return nil
			},
		},
		&cobra.Command{
			Use:   "path <uri>",
			Short: "Print the file a URI is cached at",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := openCache()
				if err != nil {
					return err
				}
				path, err := cache.Path(args[0])
				if err != nil {
					return runtimeError{err}
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status <uri>",
			Short: "Show when a URI was cached",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := openCache()
				if err != nil {
					return err
				}
				data, err := cache.Lookup(args[0])
				if errors.Is(err, pagecache.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "not cached")
					return nil
				}
				if err != nil {
					return runtimeError{err}
				}
				created, ok := pagecache.ParseStatus(data)
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "cached (%d bytes, no status marker)\n", len(data))
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cached %s (%d bytes)\n", created, len(data))
				return nil
			},
		},
		&cobra.Command{
			Use:   "purge <uri>",
			Short: "Delete the cached copy of a URI",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := openCache()
				if err != nil {
					return err
				}
				removed, err := cache.Purge(args[0])
				if err != nil {
					return runtimeError{err}
				}
				if removed {
					fmt.Fprintln(cmd.OutOrStdout(), "purged")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "not cached")
				}
				return nil
			},
		},
	)
	return root
}

func defaultConfigPath() string {
	if path := os.Getenv("PAGECACHE_CONFIG"); path != "" {
		return path
	}
	return "config.toml"
}
