package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	DEFAULT_LOG_FILENAME = "xmlls.log"
	LOG_FILE_PERMS       = 0o600
	LOG_DIR_PERMS        = 0o755
)

func defaultLogFile() string {
	return filepath.Join(os.TempDir(), DEFAULT_LOG_FILENAME)
}

// setupLogging returns a logger writing to logFile, or a disabled logger if enabled is false. If logFile cannot
// be opened the default log file is used instead.
func setupLogging(logFile string, levelName string, enabled bool, errW io.Writer) (zerolog.Logger, func(), error) {
	if !enabled {
		return zerolog.Nop(), func() {}, nil
	}

	level, err := parseLogLevel(levelName)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	if logFile == "" {
		logFile = defaultLogFile()
	}

	f, err := openLogFile(logFile)
	if err != nil {
		fallback := defaultLogFile()
		fmt.Fprintf(errW, "failed to open log file %s (%s), logs are written to %s\n", logFile, err, fallback)

		f, err = openLogFile(fallback)
		if err != nil {
			fmt.Fprintf(errW, "failed to open log file %s (%s), logging is disabled\n", fallback, err)
			return zerolog.Nop(), func() {}, nil
		}
	}

	logger := zerolog.New(f).Level(level).With().Timestamp().Logger()
	return logger, func() { f.Close() }, nil
}

func openLogFile(path string) (*os.File, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), LOG_DIR_PERMS); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LOG_FILE_PERMS)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(f, "\n---- %s ----\n", time.Now().Format(time.RFC3339))
	return f, nil
}
