// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the base name of the rotated daemon log.
const LogFileName = "proton-drive-sync.log"

// Setup configures console-only logging for interactive commands.
func Setup(debug bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	setLevel(debug)
}

// SetupWithFile configures logging for the daemon: JSON lines into a
// rotated file under logDir, mirrored to stderr.
func SetupWithFile(logDir string, debug bool) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, LogFileName),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	logrus.SetOutput(io.MultiWriter(os.Stderr, rotator))
	setLevel(debug)
	return nil
}

// LogFilePath returns the active log file location under logDir.
func LogFilePath(logDir string) string {
	return filepath.Join(logDir, LogFileName)
}

func setLevel(debug bool) {
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.InfoLevel)
}
