// Package app assembles the agenda service and exposes it as a command line.
package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"agenda-api/internal/config"
	"agenda-api/internal/logging"
)

// RootOptions holds dependencies shared by every command.
type RootOptions struct {
	// LoadConfig reads configuration; tests replace it.
	LoadConfig func() (config.Config, error)
	// LogOutput overrides where the logger writes.
	LogOutput io.Writer

	hooks serveHooks
}

// NewRootCommand creates the root command. Running it without a subcommand serves the API.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: config.Load})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	serveCmd := newServeCommand(opts)

	cmd := &cobra.Command{
		Use:           "agenda-api",
		Short:         "Personal agenda HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}

	cmd.AddCommand(serveCmd)
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newHealthcheckCommand(opts))
	cmd.AddCommand(newArchivesCommand(opts))
	return cmd
}

// setup loads configuration and builds the logger. The returned hook may be nil.
func (o *RootOptions) setup() (config.Config, *logrus.Logger, *logging.ErrorFileHook, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, hook, err := logging.New(logging.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		ErrorFile: cfg.Log.ErrorFile,
		Output:    o.LogOutput,
	})
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, logger, hook, nil
}

func newServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, hook, err := opts.setup()
			if err != nil {
				return err
			}
			defer hook.Close()

			return serve(cmd.Context(), cfg, logger, hook, opts.hooks)
		},
	}
}

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, hook, err := opts.setup()
			if err != nil {
				return err
			}
			defer hook.Close()

			return migrate(cmd.Context(), cfg, logger)
		},
	}
}

func newHealthcheckCommand(opts *RootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe GET /health on the configured address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := healthcheck(cmd.Context(), cfg.Server.Addr, timeout); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "probe timeout")
	return cmd
}

// healthcheck probes a listen address, dialing loopback when it binds every interface.
func healthcheck(ctx context.Context, addr string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("parse server.addr %q: %w", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := "http://" + net.JoinHostPort(host, port) + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func newArchivesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "archives",
		Short: "List error logs archived to object storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Archive.Bucket == "" {
				return fmt.Errorf("archive.bucket is not configured")
			}

			archiver, err := newArchiver(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			objects, err := archiver.Archived(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, obj := range objects {
				modified := "-"
				if obj.LastModified != nil {
					modified = obj.LastModified.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%s\t%d\t%s\n", obj.Key, obj.Size, modified)
			}
			return nil
		},
	}
}
