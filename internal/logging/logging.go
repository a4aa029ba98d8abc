// Package logging wires the process-wide charmbracelet logger.
// Everything goes to stderr so SQL written to stdout stays clean.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: prefix()})

func prefix() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#0E7490")).
		Bold(true).
		Padding(0, 1)
	return style.Render("animport")
}

// Init configures the logger. Debug mode adds caller and timestamp info.
func Init(w io.Writer, debug bool) {
	logger = log.NewWithOptions(w, log.Options{
		ReportCaller:    debug,
		ReportTimestamp: debug,
		TimeFormat:      "15:04:05",
		Prefix:          prefix(),
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
		logger.Debug("debug logging enabled")
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

func Debug(msg string, keyvals ...interface{}) { logger.Helper(); logger.Debug(msg, keyvals...) }
func Info(msg string, keyvals ...interface{})  { logger.Helper(); logger.Info(msg, keyvals...) }
func Warn(msg string, keyvals ...interface{})  { logger.Helper(); logger.Warn(msg, keyvals...) }
func Error(msg string, keyvals ...interface{}) { logger.Helper(); logger.Error(msg, keyvals...) }
