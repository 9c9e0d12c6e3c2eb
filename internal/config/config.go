package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// OutputFormat represents different capture log formats
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
)

// LogLevel represents capture log verbosity levels
type LogLevel string

const (
	LogLevelNone    LogLevel = "none"    // No capture records on console
	LogLevelMinimal LogLevel = "minimal" // One line per connection
	LogLevelNormal  LogLevel = "normal"  // Artifacts and sizes
	LogLevelVerbose LogLevel = "verbose" // Everything including ids and timings
)

// Defaults
const (
	DefaultListenIP       = "127.0.0.1"
	DefaultPort           = 8000
	DefaultCaptureDir     = "./request"
	DefaultResponseFile   = "./response.bin"
	DefaultChunkSize      = 1024
	DefaultIdleTimeout    = 5 // seconds
	DefaultBacklog        = 10
	DefaultMaxRequestSize = 0 // unlimited
)

// Config holds the application configuration
type Config struct {
	// Network settings
	ListenIP string
	Port     int
	Backlog  int

	// Capture settings
	CaptureDir     string
	ResponseFile   string
	ChunkSize      int
	IdleTimeout    int // Per-read idle timeout in seconds
	MaxRequestSize int // Maximum bytes captured per connection, 0 = unlimited

	// Logging and output
	Verbose      bool
	OutputFile   string       // File to append capture records to
	OutputFormat OutputFormat // Capture record format (text, json, csv)
	LogLevel     LogLevel     // Console capture record verbosity
	LogFile      string       // File to copy system logs to
	Quiet        bool         // Suppress console output

	// Capture index
	IndexDB string // SQLite database path, empty = disabled
}

// Default returns a configuration populated with the built-in defaults
func Default() *Config {
	return &Config{
		ListenIP:       DefaultListenIP,
		Port:           DefaultPort,
		Backlog:        DefaultBacklog,
		CaptureDir:     DefaultCaptureDir,
		ResponseFile:   DefaultResponseFile,
		ChunkSize:      DefaultChunkSize,
		IdleTimeout:    DefaultIdleTimeout,
		MaxRequestSize: DefaultMaxRequestSize,
		OutputFormat:   FormatText,
		LogLevel:       LogLevelNormal,
	}
}

// Addr returns the listen address in host:port form
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ListenIP, c.Port)
}

// IdleTimeoutDuration returns the idle timeout as a time.Duration
func (c *Config) IdleTimeoutDuration() time.Duration {
	return time.Duration(c.IdleTimeout) * time.Second
}

// FileConfig represents the configuration file structure with JSON tags
type FileConfig struct {
	// Network settings
	ListenIP *string `json:"listen_ip,omitempty"`
	Port     *int    `json:"port,omitempty"`

	// Capture settings
	CaptureDir     *string `json:"capture_dir,omitempty"`
	ResponseFile   *string `json:"response_file,omitempty"`
	ChunkSize      *int    `json:"chunk_size,omitempty"`
	IdleTimeout    *int    `json:"idle_timeout,omitempty"`
	MaxRequestSize *int    `json:"max_request_size,omitempty"`

	// Logging and output
	Verbose      *bool   `json:"verbose,omitempty"`
	OutputFile   *string `json:"output_file,omitempty"`
	OutputFormat *string `json:"output_format,omitempty"`
	LogLevel     *string `json:"log_level,omitempty"`
	LogFile      *string `json:"log_file,omitempty"`
	Quiet        *bool   `json:"quiet,omitempty"`

	// Capture index
	IndexDB *string `json:"index_db,omitempty"`
}

// GetConfigDir returns the configuration directory following the XDG base directory layout
func GetConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sockcap")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "sockcap")
	}

	return ".sockcap"
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.json")
}

// LoadConfigFile loads configuration from a JSON file
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileConfig{}, nil // Return empty config if file doesn't exist
		}
		return nil, err
	}

	var config FileConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Flag names shared by the command line and MergeWithFileConfig
const (
	FlagListenIP       = "listen-ip"
	FlagPort           = "port"
	FlagCaptureDir     = "capture-dir"
	FlagResponseFile   = "response-file"
	FlagChunkSize      = "chunk-size"
	FlagIdleTimeout    = "idle-timeout"
	FlagMaxRequestSize = "max-request-size"
	FlagVerbose        = "verbose"
	FlagOutput         = "output"
	FlagFormat         = "format"
	FlagLogLevel       = "log-level"
	FlagLogFile        = "log-file"
	FlagQuiet          = "quiet"
	FlagIndexDB        = "index-db"
)

// MergeWithFileConfig merges file configuration with CLI configuration.
// A file value applies unless the matching flag was set on the command line,
// even when it was set to its default. A nil flag set means none were set.
func (c *Config) MergeWithFileConfig(fileConfig *FileConfig, flags *pflag.FlagSet) {
	unset := func(name string) bool {
		return flags == nil || !flags.Changed(name)
	}

	// Network settings
	if fileConfig.ListenIP != nil && unset(FlagListenIP) {
		c.ListenIP = *fileConfig.ListenIP
	}
	if fileConfig.Port != nil && unset(FlagPort) {
		c.Port = *fileConfig.Port
	}

	// Capture settings
	if fileConfig.CaptureDir != nil && unset(FlagCaptureDir) {
		c.CaptureDir = *fileConfig.CaptureDir
	}
	if fileConfig.ResponseFile != nil && unset(FlagResponseFile) {
		c.ResponseFile = *fileConfig.ResponseFile
	}
	if fileConfig.ChunkSize != nil && unset(FlagChunkSize) {
		c.ChunkSize = *fileConfig.ChunkSize
	}
	if fileConfig.IdleTimeout != nil && unset(FlagIdleTimeout) {
		c.IdleTimeout = *fileConfig.IdleTimeout
	}
	if fileConfig.MaxRequestSize != nil && unset(FlagMaxRequestSize) {
		c.MaxRequestSize = *fileConfig.MaxRequestSize
	}

	// Logging and output
	if fileConfig.Verbose != nil && unset(FlagVerbose) {
		c.Verbose = *fileConfig.Verbose
	}
	if fileConfig.OutputFile != nil && unset(FlagOutput) {
		c.OutputFile = *fileConfig.OutputFile
	}
	if fileConfig.OutputFormat != nil && unset(FlagFormat) {
		c.OutputFormat = OutputFormat(*fileConfig.OutputFormat)
	}
	if fileConfig.LogLevel != nil && unset(FlagLogLevel) {
		c.LogLevel = LogLevel(*fileConfig.LogLevel)
	}
	if fileConfig.LogFile != nil && unset(FlagLogFile) {
		c.LogFile = *fileConfig.LogFile
	}
	if fileConfig.Quiet != nil && unset(FlagQuiet) {
		c.Quiet = *fileConfig.Quiet
	}

	// Capture index
	if fileConfig.IndexDB != nil && unset(FlagIndexDB) {
		c.IndexDB = *fileConfig.IndexDB
	}
}

// Validate checks the merged configuration
func (c *Config) Validate() error {
	validFormats := []OutputFormat{FormatText, FormatJSON, FormatCSV}
	if !contains(validFormats, c.OutputFormat) {
		return fmt.Errorf("invalid output format '%s', must be one of: text, json, csv", c.OutputFormat)
	}

	validLevels := []LogLevel{LogLevelNone, LogLevelMinimal, LogLevelNormal, LogLevelVerbose}
	if !contains(validLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level '%s', must be one of: none, minimal, normal, verbose", c.LogLevel)
	}

	if strings.TrimSpace(c.ListenIP) == "" {
		return fmt.Errorf("listen-ip must not be empty")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}
	if c.Backlog < 1 {
		return fmt.Errorf("backlog must be >= 1")
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk-size must be >= 1")
	}
	if c.IdleTimeout < 1 {
		return fmt.Errorf("idle-timeout must be >= 1 second")
	}
	if c.MaxRequestSize < 0 {
		return fmt.Errorf("max-request-size must be >= 0")
	}
	if c.CaptureDir == "" {
		return fmt.Errorf("capture-dir must not be empty")
	}

	// If quiet mode is enabled, require output file
	if c.Quiet && c.OutputFile == "" {
		return fmt.Errorf("quiet mode (-q) requires output file (-o)")
	}

	return nil
}

func contains[T comparable](values []T, v T) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
