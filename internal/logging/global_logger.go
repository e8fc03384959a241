// Package logging wires the process-wide logrus logger: base formatting,
// level selection, optional rotated file output, and the gin access-log
// middleware.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/router-for-me/AntiHubAPI/internal/config"
)

const (
	defaultLogDir = "logs"
	logFileName   = "antihub-api.log"
	logMaxSizeMB  = 64
	logMaxBackups = 5
	logMaxAgeDays = 14
)

// SetupBaseLogger applies the standard formatter and default level. Called
// once at process start, before the configuration is loaded.
func SetupBaseLogger() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

// SetLogLevel maps a level name onto the logrus level. Unknown names fall
// back to info.
func SetLogLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "verbose":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "quiet", "silent":
		log.SetLevel(log.FatalLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// ConfigureLogOutput switches between stdout and rotated file logging
// according to the configuration.
func ConfigureLogOutput(cfg *config.Config) error {
	if cfg == nil || !cfg.LoggingToFile {
		log.SetOutput(os.Stdout)
		return nil
	}

	dir := cfg.LogDir
	if dir == "" {
		dir = defaultLogDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("logging: create log dir %s: %w", dir, err)
	}

	log.SetOutput(&lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	})
	return nil
}
