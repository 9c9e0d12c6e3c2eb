package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/hmgle/sockcap/internal/config"
	"github.com/hmgle/sockcap/pkg/capture"
	"github.com/hmgle/sockcap/pkg/index"
	"github.com/hmgle/sockcap/pkg/logger"
	"github.com/hmgle/sockcap/pkg/response"
	"github.com/hmgle/sockcap/pkg/server"
)

const (
	version = "0.1.0"
)

type rootOptions struct {
	cfg        *config.Config
	configPath string
	logLevel   string
	format     string
}

func init() {
	maxprocs.Set()
}

func main() {
	rootCmd := newRootCmd(&rootOptions{cfg: config.Default()})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "sockcap [flags]",
		Short: "sockcap - raw TCP request capture listener",
		Long: `sockcap listens on a TCP port and captures whatever a client sends.

Each connection is read until the client closes its side or stays idle for
the idle timeout. The raw bytes are saved under the capture directory, an
embedded image part (Content-Type: image/jpeg, image/png or image/jpg) is
saved next to it, and a fixed response is sent back before the connection
is closed. Connections are handled one at a time.

Examples:
  # Listen on the default 127.0.0.1:8000 and save into ./request
  sockcap

  # Custom address, capture directory and response template
  sockcap --listen-ip 0.0.0.0 --port 9000 --capture-dir /tmp/caps --response-file ./reply.bin

  # Keep a JSON log of every capture plus a searchable index
  sockcap -o captures.json --format json --index-db captures.db

  # Quiet mode - only write capture records to file
  sockcap -q -o captures.csv --format csv

  # List the last 20 indexed captures that carried an image
  sockcap recent --index-db captures.db -n 20 --images`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSockcap(cmd, opts)
		},
	}

	opts.bindFlags(rootCmd.Flags())
	rootCmd.AddCommand(newRecentCmd())
	return rootCmd
}

func (o *rootOptions) bindFlags(flags *pflag.FlagSet) {
	cfg := o.cfg

	// Network settings
	flags.StringVar(&cfg.ListenIP, config.FlagListenIP, config.DefaultListenIP, "IP address to listen on")
	flags.IntVarP(&cfg.Port, config.FlagPort, "p", config.DefaultPort, "TCP port to listen on")

	// Capture settings
	flags.StringVarP(&cfg.CaptureDir, config.FlagCaptureDir, "d", config.DefaultCaptureDir, "Directory for request snapshots and extracted images")
	flags.StringVar(&cfg.ResponseFile, config.FlagResponseFile, config.DefaultResponseFile, "Raw response template sent to every client (built-in default if unreadable)")
	flags.IntVar(&cfg.ChunkSize, config.FlagChunkSize, config.DefaultChunkSize, "Bytes read per socket read")
	flags.IntVar(&cfg.IdleTimeout, config.FlagIdleTimeout, config.DefaultIdleTimeout, "Seconds to wait for more data before ending a read")
	flags.IntVar(&cfg.MaxRequestSize, config.FlagMaxRequestSize, config.DefaultMaxRequestSize, "Maximum bytes captured per connection (0=unlimited)")

	// Logging and output
	flags.BoolVarP(&cfg.Verbose, config.FlagVerbose, "v", false, "Enable verbose output")
	flags.StringVarP(&cfg.OutputFile, config.FlagOutput, "o", "", "Append capture records to file")
	flags.StringVar(&o.format, config.FlagFormat, string(config.FormatText), "Capture record format: text, json, csv")
	flags.StringVar(&o.logLevel, config.FlagLogLevel, string(config.LogLevelNormal), "Console capture logging level: none, minimal, normal, verbose")
	flags.StringVar(&cfg.LogFile, config.FlagLogFile, "", "Also write system logs to file")
	flags.BoolVarP(&cfg.Quiet, config.FlagQuiet, "q", false, "Suppress console output (quiet mode)")

	// Capture index
	flags.StringVar(&cfg.IndexDB, config.FlagIndexDB, "", "Record every capture in this SQLite database")

	flags.StringVar(&o.configPath, "config", config.GetDefaultConfigPath(), "JSON configuration file")
}

// resolve applies the config file under the command line and validates the result
func (o *rootOptions) resolve(flags *pflag.FlagSet) (*config.Config, error) {
	cfg := o.cfg
	cfg.OutputFormat = config.OutputFormat(o.format)
	cfg.LogLevel = config.LogLevel(o.logLevel)

	fileConfig, err := config.LoadConfigFile(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", o.configPath, err)
	}
	cfg.MergeWithFileConfig(fileConfig, flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSockcap(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.resolve(cmd.Flags())
	if err != nil {
		return err
	}

	log, err := logger.NewEnhanced(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	log.Info("Starting sockcap v%s", version)

	if err := capture.EnsureDir(cfg.CaptureDir); err != nil {
		// Not fatal: each write will report its own failure.
		log.Error("Failed to create the directory %s: %v", cfg.CaptureDir, err)
	}

	template, usedDefault := response.Load(cfg.ResponseFile)
	if usedDefault {
		log.Info("No response template at %s, using built-in default", cfg.ResponseFile)
	} else {
		log.Debug("Loaded %d byte response template from %s", len(template), cfg.ResponseFile)
	}

	srvOpts := server.Options{
		Config:   cfg,
		Template: template,
		Logger:   log,
	}

	if cfg.IndexDB != "" {
		store, err := index.Open(cfg.IndexDB)
		if err != nil {
			return fmt.Errorf("failed to open capture index: %w", err)
		}
		defer store.Close()
		srvOpts.Index = store
		log.Info("Recording captures in %s", cfg.IndexDB)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), signalsToHandle...)
	defer stop()

	srv := server.New(srvOpts)
	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}
