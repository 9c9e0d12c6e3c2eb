package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hmgle/sockcap/internal/config"
	"github.com/hmgle/sockcap/pkg/index"
	"github.com/hmgle/sockcap/pkg/logger"
)

const defaultRecentCount = 10

type recentOptions struct {
	cfg        *config.Config
	configPath string
	count      int
	images     bool
}

func newRecentCmd() *cobra.Command {
	opts := &recentOptions{cfg: config.Default()}

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List captures recorded in the index",
		Long: `List the newest captures recorded by a previous run with --index-db.

The index path comes from --index-db or, if unset, from index_db in the
configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecent(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.cfg.IndexDB, config.FlagIndexDB, "", "SQLite capture index to read")
	flags.IntVarP(&opts.count, "count", "n", defaultRecentCount, "Number of captures to list")
	flags.BoolVar(&opts.images, "images", false, "Only list captures that produced an image")
	flags.StringVar(&opts.configPath, "config", config.GetDefaultConfigPath(), "JSON configuration file")

	return cmd
}

func runRecent(cmd *cobra.Command, opts *recentOptions) error {
	if opts.count < 1 {
		return fmt.Errorf("count must be >= 1")
	}

	fileConfig, err := config.LoadConfigFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", opts.configPath, err)
	}
	opts.cfg.MergeWithFileConfig(fileConfig, cmd.Flags())
	if opts.cfg.IndexDB == "" {
		return fmt.Errorf("no capture index: set --index-db or index_db in %s", opts.configPath)
	}

	store, err := index.Open(opts.cfg.IndexDB)
	if err != nil {
		return fmt.Errorf("failed to open capture index: %w", err)
	}
	defer store.Close()

	var entries []index.Entry
	if opts.images {
		entries, err = store.WithImages(cmd.Context())
		if len(entries) > opts.count {
			entries = entries[:opts.count]
		}
	} else {
		entries, err = store.Recent(cmd.Context(), opts.count)
	}
	if err != nil {
		return err
	}

	log := logger.NewWithWriter(cmd.OutOrStdout(), false)
	if len(entries) == 0 {
		log.Info("No captures in %s", opts.cfg.IndexDB)
		return nil
	}
	for _, e := range entries {
		image := "-"
		if e.ImagePath != "" {
			image = fmt.Sprintf("%s (%s)", e.ImagePath, e.ImageType)
		}
		log.Info("%s %s %d bytes (%s) -> %s, image %s, %v",
			e.Timestamp.Local().Format(time.DateTime),
			e.RemoteAddr,
			e.BytesRead,
			e.EndReason,
			e.SnapshotPath,
			image,
			time.Duration(e.DurationMS)*time.Millisecond,
		)
	}
	return nil
}
