package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// OpenLogFile returns a logger appending to path. The TUI owns the terminal,
// so nothing may log to stderr while it runs.
func OpenLogFile(path string, level log.Level) (*log.Logger, io.Closer, error) {
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	logger := log.NewWithOptions(logFile, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Level:           level,
	})
	return logger, logFile, nil
}
