// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tiiuae/quickscan/internal/mission"
)

type Config struct {
	Level  string // debug | info | warn | error
	Format string // text | json
	File   string // optional, rotated
}

// Setup applies cfg to the standard logrus logger. The returned closer
// releases the log file, if any.
func Setup(cfg Config) (io.Closer, error) {
	lvl := log.InfoLevel
	if cfg.Level != "" {
		var err error
		lvl, err = log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, errors.WithMessagef(mission.ErrConfiguration, "log level: %v", err)
		}
	}
	log.SetLevel(lvl)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, errors.WithMessagef(mission.ErrConfiguration, "unknown log format '%s'", cfg.Format)
	}

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    32, // MB
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
	if lvl == log.DebugLevel || lvl == log.TraceLevel {
		w.MaxSize = 256
	}
	log.SetOutput(io.MultiWriter(os.Stderr, w))
	return w, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
