package utils

import (
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/multi"
	"github.com/apex/log/handlers/text"
	"github.com/pkg/errors"
)

// InitializeAppLog sets up logging: plain text appended to the file at path
// and colored lines on stderr. The returned closer releases the file.
func InitializeAppLog(path string, debug bool) (io.Closer, error) {
	logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "error setting up log file")
	}

	log.SetHandler(multi.New(
		text.New(logFile),
		cli.New(os.Stderr),
	))
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	log.Info("application started")
	return logFile, nil
}

// IfError logs err, if any, with the caller's file and line.
func IfError(err error, message string) {
	if err != nil {
		_, file, line, _ := runtime.Caller(1)
		log.WithFields(log.Fields{
			"file": filepath.Base(file),
			"line": line,
		}).WithError(err).Error(message)
	}
}
