package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"metadata-tracker/internal/memory"
	"metadata-tracker/internal/startup"
	"metadata-tracker/internal/store"
	"metadata-tracker/internal/tracker"
	"metadata-tracker/internal/workers"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "metadata-tracker",
		Short:         "Metadata and preview cache for generated outputs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	startup.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(),
		newMetadataCmd(),
		newPreviewCmd(),
		newClearCacheCmd(),
		newWarmCmd(),
		newVersionCmd(),
	)
	return root
}

func absArg(arg string) (string, error) {
	path, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", arg, err)
	}
	return path, nil
}

func newMetadataCmd() *cobra.Command {
	var starNoFolders bool

	cmd := &cobra.Command{
		Use:   "metadata <file>",
		Short: "Print the cached metadata of a file, computing it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absArg(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rec := a.tracker.GetMetadataFor(path, a.config.OutputDir, starNoFolders)
			if rec == nil {
				return fmt.Errorf("no metadata for %s: file missing or empty", args[0])
			}
			return printRecord(cmd, rec)
		},
	}
	cmd.Flags().BoolVar(&starNoFolders, "star-no-folders", false, "look for a flattened starred mirror")
	return cmd
}

func printRecord(cmd *cobra.Command, rec *store.MetadataRecord) error {
	out := struct {
		Key          string          `json:"key"`
		Metadata     json.RawMessage `json:"metadata,omitempty"`
		Text         *string         `json:"text,omitempty"`
		FileTime     int64           `json:"fileTime"`
		LastVerified int64           `json:"lastVerified"`
	}{Key: rec.Key, FileTime: rec.FileTime, LastVerified: rec.LastVerified}

	if rec.Metadata != nil {
		if json.Valid([]byte(*rec.Metadata)) {
			out.Metadata = json.RawMessage(*rec.Metadata)
		} else {
			out.Text = rec.Metadata
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newPreviewCmd() *cobra.Command {
	var (
		output     string
		simplified bool
	)

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Write the preview of a file, generating it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absArg(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rec := a.tracker.GetOrCreatePreviewFor(path)
			if rec == nil {
				return fmt.Errorf("no preview available for %s", args[0])
			}
			data := rec.Data
			if simplified && rec.Animated() {
				data = rec.Simplified
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("writing preview: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(data), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&simplified, "simplified", false, "write the static frame of an animated preview")
	return cmd
}

func newClearCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Delete every metadata store under the output and data directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.tracker.MassRemoveMetadata()
			fmt.Fprintln(cmd.OutOrStdout(), "Metadata caches cleared")
			return nil
		},
	}
}

func newWarmCmd() *cobra.Command {
	var (
		numWorkers int
		noPreviews bool
	)

	cmd := &cobra.Command{
		Use:   "warm [dir]",
		Short: "Populate metadata and preview records for every file under dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			dir := a.config.OutputDir
			if len(args) == 1 {
				if dir, err = absArg(args[0]); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := tracker.DefaultWarmConfig()
			if numWorkers > 0 {
				cfg.NumWorkers = numWorkers
			}
			cfg.Previews = !noPreviews

			memory.ConfigureFromEnv()
			monitor := memory.NewMonitor(memory.DefaultConfig())
			monitor.Start()
			defer monitor.Stop()
			cfg.Backpressure = monitor

			stats, err := a.tracker.Warm(ctx, dir, cfg)
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d files, skipped %d in %v\n",
				stats.Processed, stats.Skipped, stats.Duration)
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("warm interrupted")
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&numWorkers, "workers", "w", 0,
		fmt.Sprintf("parallel workers (default from %s or CPU count)", workers.EnvOverride))
	cmd.Flags().BoolVar(&noPreviews, "no-previews", false, "only populate metadata records")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := startup.GetBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "metadata-tracker %s (commit %s, built %s, %s %s/%s)\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
		},
	}
}
