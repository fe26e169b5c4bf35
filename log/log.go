package log

import (
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/stxfxno/listify/config"
	"github.com/stxfxno/listify/constant"
)

// FromConfig builds the application logger from loaded configuration.
func FromConfig(conf config.Log) zerolog.Logger {
	return New(conf.Level, conf.Format)
}

// New builds the application logger. Format "auto" resolves to pretty when
// stderr is a terminal and json otherwise.
func New(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if nil != err {
		panic("invalid logging level: " + level)
	}

	if format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "pretty"
		}
	}

	switch strings.ToLower(format) {
	case "json":
		return zerolog.
			New(os.Stderr).
			Hook(&stackHook{}).
			With().
			Timestamp().
			Str("version", constant.Version).
			Str("compile_time", constant.CompileTime).
			Logger().
			Level(lvl)
	case "pretty":
		return zerolog.
			New(zerolog.ConsoleWriter{ //nolint:exhaustruct
				Out:          os.Stderr,
				TimeFormat:   time.RFC3339,
				TimeLocation: time.UTC,
			}).
			Hook(&stackHook{}).
			With().
			Timestamp().
			Str("version", constant.Version).
			Str("compile_time", constant.CompileTime).
			Logger().
			Level(lvl)
	default:
		panic("invalid logging format: " + format)
	}
}

func NewDefault() zerolog.Logger {
	return zerolog.
		New(zerolog.ConsoleWriter{ //nolint:exhaustruct
			Out:          os.Stderr,
			TimeFormat:   time.RFC3339,
			TimeLocation: time.UTC,
		}).
		Hook(&stackHook{}).
		With().
		Timestamp().
		Str("version", constant.Version).
		Str("compile_time", constant.CompileTime).
		Logger().
		Level(zerolog.InfoLevel)
}
