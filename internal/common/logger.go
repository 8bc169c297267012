package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// LogFileName is the diagnostic log written under Logging.Dir.
const LogFileName = "vigil.log"

// InitLogger builds the arbor logger from configuration. The logger is
// returned to the caller and passed explicitly to every component; nothing
// is stored globally.
func InitLogger(config *Config) arbor.ILogger {
	logger := arbor.NewLogger()

	timeFormat := config.Logging.TimeFormat
	if timeFormat == "" {
		timeFormat = "15:04:05.000"
	}

	hasFileOutput := false
	hasStdoutOutput := false
	for _, output := range config.Logging.Output {
		if output == "file" {
			hasFileOutput = true
		}
		if output == "stdout" || output == "console" {
			hasStdoutOutput = true
		}
	}

	// Configure file logging if enabled
	if hasFileOutput {
		logsDir := config.Logging.Dir
		if logsDir == "" {
			logsDir = defaultLogsDir()
		}
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			fmt.Printf("Warning: Failed to create logs directory: %v\n", err)
			hasStdoutOutput = true
		} else {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:             models.LogWriterTypeFile,
				FileName:         filepath.Join(logsDir, LogFileName),
				TimeFormat:       timeFormat,
				MaxSize:          100 * 1024 * 1024, // 100 MB
				MaxBackups:       3,
				TextOutput:       true,
				DisableTimestamp: false,
			})
		}
	}

	// Configure console logging if enabled
	if hasStdoutOutput {
		logger = logger.WithConsoleWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeConsole,
			TimeFormat:       timeFormat,
			TextOutput:       true,
			DisableTimestamp: false,
		})
	}

	return logger.WithLevelFromString(config.Logging.Level)
}

// Stop flushes and closes every log writer registered by InitLogger and
// removes it from the arbor registry. Calling it again is a no-op.
func Stop() {
	for name, writer := range arbor.GetAllRegisteredWriters() {
		if err := writer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log writer %s: %v\n", name, err)
		}
		arbor.UnregisterWriter(name)
	}
}

// defaultLogsDir places logs next to the executable, falling back to ./logs.
func defaultLogsDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return "logs"
	}
	return filepath.Join(filepath.Dir(execPath), "logs")
}
