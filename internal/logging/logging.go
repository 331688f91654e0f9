package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Setup installs a tint handler on stderr as the default slog logger.
func Setup(level slog.Level) *slog.Logger {
	return SetupWriter(os.Stderr, level, !isatty.IsTerminal(os.Stderr.Fd()))
}

func SetupWriter(w io.Writer, level slog.Level, noColor bool) *slog.Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
		AddSource:  true,
		NoColor:    noColor,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
