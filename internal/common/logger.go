package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const (
	defaultTimeFormat = "15:04:05"
	logFileName       = "divtrack.log"
	logFileMaxSize    = 50 * 1024 * 1024
	logFileBackups    = 5
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.Mutex
)

// GetLogger returns the logger built by SetupLogger, or a console logger
// when called before configuration is loaded.
func GetLogger() arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleWriter(defaultTimeFormat))
	}
	return globalLogger
}

// SetupLogger builds the process logger from [logging] and installs it as the
// global logger. "file" writes a rotating logs/divtrack.log next to the
// executable; a console writer is added for "stdout"/"console" and whenever
// no file could be opened.
func SetupLogger(config *Config) arbor.ILogger {
	timeFormat := config.Logging.TimeFormat
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}

	wantFile, wantConsole := false, false
	for _, output := range config.Logging.Output {
		switch output {
		case "file":
			wantFile = true
		case "stdout", "console":
			wantConsole = true
		}
	}

	logger := arbor.NewLogger()

	fileOpen := false
	if wantFile {
		dir, err := logsDirectory()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: log file disabled: %v\n", err)
		} else {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   filepath.Join(dir, logFileName),
				TimeFormat: timeFormat,
				MaxSize:    logFileMaxSize,
				MaxBackups: logFileBackups,
				TextOutput: true,
			})
			fileOpen = true
		}
	}

	if wantConsole || !fileOpen {
		logger = logger.WithConsoleWriter(consoleWriter(timeFormat))
	}

	logger = logger.WithLevelFromString(config.Logging.Level)

	loggerMutex.Lock()
	globalLogger = logger
	loggerMutex.Unlock()

	return logger
}

func consoleWriter(timeFormat string) models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: timeFormat,
		TextOutput: true,
	}
}

// logsDirectory is logs/ beside the executable, created on demand
func logsDirectory() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(filepath.Dir(execPath), "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
