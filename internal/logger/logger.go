// Package logger provides the process-wide structured logger used by the
// sink controller, manifest engine and storage adapters. It wraps
// github.com/rs/zerolog behind the same small surface the rest of the repo
// expects: Init/SetLevel/Level/UseWriter/Logger, plus With* helpers that
// attach the sink's own identity fields (manifest name, track id) rather
// than a transport connection's.
package logger

import (
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Environment variable name for log level configuration.
const envLogLevel = "HLSSINK_LOG_LEVEL"

var (
	global   zerolog.Logger
	initOnce sync.Once

	// Optional flag (users may pass -log.level=debug). If flags.Parse() hasn't
	// yet been called when Init is invoked, we still read the raw os.Args.
	flagLevel = flag.String("log.level", "", "log level (debug, info, warn, error)")
)

// Init initializes the global logger. It is safe to call multiple times; the
// first call wins except SetLevel / UseWriter which mutate state intentionally.
func Init() {
	initOnce.Do(func() {
		lvl := detectLevel()
		global = zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	})
}

// detectLevel resolves the initial log level from (precedence high→low):
//  1. command-line flag -log.level
//  2. environment variable HLSSINK_LOG_LEVEL
//  3. default (info)
func detectLevel() zerolog.Level {
	if *flagLevel == "" {
		for _, arg := range os.Args[1:] {
			if strings.HasPrefix(arg, "-log.level=") {
				parts := strings.SplitN(arg, "=", 2)
				if len(parts) == 2 {
					*flagLevel = parts[1]
				}
			}
		}
	}
	if lvl, ok := parseLevel(strings.TrimSpace(*flagLevel)); ok {
		return lvl
	}
	if env := os.Getenv(envLogLevel); env != "" {
		if lvl, ok := parseLevel(env); ok {
			return lvl
		}
	}
	return zerolog.InfoLevel
}

// parseLevel converts string to zerolog.Level.
func parseLevel(s string) (zerolog.Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return zerolog.DebugLevel, true
	case "info", "":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error", "err":
		return zerolog.ErrorLevel, true
	}
	return 0, false
}

// SetLevel changes the runtime log level.
func SetLevel(level string) error {
	Init()
	lvl, ok := parseLevel(level)
	if !ok {
		return errors.New("invalid log level: " + level)
	}
	global = global.Level(lvl)
	return nil
}

// Level returns the current runtime level as a string.
func Level() string {
	Init()
	return global.GetLevel().String()
}

// UseWriter swaps the output writer (intended for tests). Retains current level.
func UseWriter(w io.Writer) {
	Init()
	global = zerolog.New(w).Level(global.GetLevel()).With().Timestamp().Logger()
}

// Logger returns the global logger (ensures Init was called).
func Logger() *zerolog.Logger { Init(); return &global }

// Convenience top-level logging functions. kv must be an even-length list of
// alternating string keys and values, mirroring the teacher's slog-style
// call sites while zerolog does the actual field encoding.
func Debug(msg string, kv ...any) { emit(Logger().Debug(), msg, kv) }
func Info(msg string, kv ...any)  { emit(Logger().Info(), msg, kv) }
func Warn(msg string, kv ...any)  { emit(Logger().Warn(), msg, kv) }
func Error(msg string, kv ...any) { emit(Logger().Error(), msg, kv) }

func emit(e *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

// WithManifest attaches the presentation (manifest) name to a logger.
func WithManifest(l *zerolog.Logger, manifestName string) zerolog.Logger {
	return l.With().Str("manifest", manifestName).Logger()
}

// WithTrack attaches track identity fields.
func WithTrack(l *zerolog.Logger, trackID, contentType string) zerolog.Logger {
	return l.With().Str("track_id", trackID).Str("content_type", contentType).Logger()
}

// WithFragmentMeta attaches fragment metadata fields for a single add_chunk call.
func WithFragmentMeta(l *zerolog.Logger, seqNum uint64, durationSeconds float64, byteSize int64) zerolog.Logger {
	return l.With().
		Uint64("seq_num", seqNum).
		Float64("duration_s", durationSeconds).
		Int64("byte_size", byteSize).
		Logger()
}
