package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hperssn/interviewclock/internal/config"
)

// New builds the process logger. Development gets human readable text,
// everything else JSON. When LOG_FILE is set, output is also written to a
// rotating file; the returned func closes it.
func New(cfg *config.Config) (*slog.Logger, func() error) {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closeFn := func() error { return nil }
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		out = io.MultiWriter(os.Stdout, file)
		closeFn = file.Close
	}

	return slog.New(newHandler(out, cfg.IsDevelopment(), level)), closeFn
}

func newHandler(w io.Writer, development bool, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if development {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
