package logger

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/hmgle/sockcap/internal/config"
)

// CaptureLogger handles capture record logging with various output formats
type CaptureLogger interface {
	Logger
	LogCapture(record *CaptureRecord) error
	SessionID() string
	Close() error
}

// EnhancedLogger implements both Logger and CaptureLogger interfaces
type EnhancedLogger struct {
	*StandardLogger
	config     *config.Config
	outputFile *os.File
	logFile    *os.File
	csvWriter  *csv.Writer
	sessionID  string
	mu         sync.Mutex
}

// NewEnhanced creates a new enhanced logger with capture logging capabilities
func NewEnhanced(cfg *config.Config) (CaptureLogger, error) {
	return newEnhanced(cfg, os.Stdout)
}

func newEnhanced(cfg *config.Config, console io.Writer) (*EnhancedLogger, error) {
	enhanced := &EnhancedLogger{
		config:    cfg,
		sessionID: generateSessionID(),
	}

	// Console output is disabled in quiet mode
	var sinks []io.Writer
	if !cfg.Quiet && console != nil {
		sinks = append(sinks, console)
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		enhanced.logFile = f
		sinks = append(sinks, f)
	}

	var w io.Writer
	switch len(sinks) {
	case 0:
	case 1:
		w = sinks[0]
	default:
		w = io.MultiWriter(sinks...)
	}
	// Quiet already removed the console sink; the log file keeps debug lines.
	enhanced.StandardLogger = NewWithWriter(w, cfg.Verbose)

	if cfg.OutputFile != "" {
		if err := enhanced.setupFileOutput(); err != nil {
			enhanced.Close()
			return nil, fmt.Errorf("failed to setup file output: %w", err)
		}
	}

	return enhanced, nil
}

// SessionID returns the id stamped on every record of this run
func (l *EnhancedLogger) SessionID() string {
	return l.sessionID
}

// setupFileOutput initializes file output based on format
func (l *EnhancedLogger) setupFileOutput() error {
	var err error
	l.outputFile, err = os.OpenFile(l.config.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	if l.config.OutputFormat == config.FormatCSV {
		l.csvWriter = csv.NewWriter(l.outputFile)
		// Header only for a fresh file
		if info, err := l.outputFile.Stat(); err == nil && info.Size() == 0 {
			header := []string{"timestamp", "session_id", "id", "remote_addr", "bytes_read", "end_reason", "snapshot_path", "image_path", "image_type", "response_size", "duration_ms"}
			if err := l.csvWriter.Write(header); err != nil {
				return err
			}
			l.csvWriter.Flush()
		}
	}

	return nil
}

// LogCapture logs a capture record based on configuration
func (l *EnhancedLogger) LogCapture(record *CaptureRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if record.SessionID == "" {
		record.SessionID = l.sessionID
	}

	if !l.config.Quiet {
		l.logCaptureToConsole(record)
	}

	if l.outputFile != nil {
		return l.logCaptureToFile(record)
	}

	return nil
}

// logCaptureToConsole logs a record to console based on log level
func (l *EnhancedLogger) logCaptureToConsole(record *CaptureRecord) {
	switch l.config.LogLevel {
	case config.LogLevelMinimal:
		l.Info("<< %s %d bytes (%s)", record.RemoteAddr, record.BytesRead, record.EndReason)
	case config.LogLevelNormal:
		l.Info("<< Capture from %s", record.RemoteAddr)
		l.Info("Bytes read: %d (%s)", record.BytesRead, record.EndReason)
		l.Info("Snapshot: %s", record.SnapshotPath)
		if record.HasImage() {
			l.Info("Image: %s (%s, %d bytes)", record.ImagePath, record.ImageType, record.ImageSize)
		}
		l.Info("")
	case config.LogLevelVerbose:
		l.Info("<< Capture %s from %s", record.ID, record.RemoteAddr)
		l.Info("Session: %s", record.SessionID)
		l.Info("Bytes read: %d (%s)", record.BytesRead, record.EndReason)
		l.Info("Snapshot: %s", record.SnapshotPath)
		if record.HasImage() {
			l.Info("Image: %s (%s, %d bytes)", record.ImagePath, record.ImageType, record.ImageSize)
		} else {
			l.Info("Image: none")
		}
		l.Info(">> Response: %d bytes", record.ResponseSize)
		l.Info("Handled in %v", record.Duration)
		l.Info("")
	}
}

// logCaptureToFile logs a record to file in the configured format
func (l *EnhancedLogger) logCaptureToFile(record *CaptureRecord) error {
	switch l.config.OutputFormat {
	case config.FormatJSON:
		return l.logCaptureAsJSON(record)
	case config.FormatCSV:
		return l.logCaptureAsCSV(record)
	case config.FormatText:
		return l.logCaptureAsText(record)
	}
	return nil
}

func (l *EnhancedLogger) logCaptureAsJSON(record *CaptureRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = l.outputFile.Write(append(data, '\n'))
	return err
}

func (l *EnhancedLogger) logCaptureAsCSV(record *CaptureRecord) error {
	row := []string{
		record.Timestamp.Format(time.RFC3339),
		record.SessionID,
		record.ID,
		record.RemoteAddr,
		strconv.Itoa(record.BytesRead),
		record.EndReason,
		record.SnapshotPath,
		record.ImagePath,
		record.ImageType,
		strconv.Itoa(record.ResponseSize),
		strconv.FormatInt(record.Duration.Milliseconds(), 10),
	}

	if err := l.csvWriter.Write(row); err != nil {
		return err
	}
	l.csvWriter.Flush()
	return l.csvWriter.Error()
}

func (l *EnhancedLogger) logCaptureAsText(record *CaptureRecord) error {
	image := "-"
	if record.HasImage() {
		image = record.ImagePath
	}
	text := fmt.Sprintf("[%s] %s %s %d bytes (%s) -> %s, image %s, response %d bytes (%v)\n",
		record.Timestamp.Format("15:04:05"),
		record.SessionID,
		record.RemoteAddr,
		record.BytesRead,
		record.EndReason,
		record.SnapshotPath,
		image,
		record.ResponseSize,
		record.Duration,
	)

	_, err := l.outputFile.WriteString(text)
	return err
}

// Close closes the capture logger and flushes any buffered data
func (l *EnhancedLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.csvWriter != nil {
		l.csvWriter.Flush()
	}
	if l.outputFile != nil {
		firstErr = l.outputFile.Close()
		l.outputFile = nil
	}
	if l.logFile != nil {
		if err := l.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.logFile = nil
	}
	return firstErr
}

// generateSessionID generates a session ID for this run
func generateSessionID() string {
	return fmt.Sprintf("sc_%d", time.Now().Unix())
}
