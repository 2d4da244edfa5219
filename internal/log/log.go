// Package log configures apex/log for the schema bootstrap Lambda and the
// schemactl CLI.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/discard"
	"github.com/apex/log/handlers/json"
)

// Output formats accepted by InitLogger.
const (
	FormatJSON = "json"
	FormatCLI  = "cli"
)

// InitLogger installs the handler for format on the apex default logger and
// sets its level. Unknown levels fall back to info, unknown formats to JSON
// (what CloudWatch Logs expects from a Lambda).
func InitLogger(level, format string) {
	log.SetHandler(newHandler(os.Stdout, format))
	log.SetLevel(parseLevel(level))
}

// New returns a standalone logger writing to w. It does not touch the apex
// default logger.
func New(w io.Writer, level, format string) *log.Logger {
	return &log.Logger{
		Handler: newHandler(w, format),
		Level:   parseLevel(level),
	}
}

// Discard returns a logger that drops every entry.
func Discard() *log.Logger {
	return &log.Logger{Handler: discard.New(), Level: log.FatalLevel}
}

func newHandler(w io.Writer, format string) log.Handler {
	switch strings.ToLower(format) {
	case FormatCLI:
		return cli.New(w)
	default:
		return json.New(w)
	}
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "warning":
		return log.WarnLevel
	case "trace":
		return log.DebugLevel
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
