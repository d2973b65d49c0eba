package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogMode selects the log output format.
type LogMode string

const (
	LogModeDefault  LogMode = "default"
	LogModeJSON     LogMode = "json"
	LogModeCombined LogMode = "combined"
)

const (
	jobIDFieldName     = "JobID"
	simulatorFieldName = "Simulator"
	workerIDFieldName  = "WorkerID"
)

var stderr = struct{ io.Writer }{os.Stderr}

func init() { //nolint:gochecknoinits // init with zerolog is idiomatic
	configureLogging(levelFromEnv(zerolog.InfoLevel), modeFromEnv(LogModeDefault))
}

type tTesting interface {
	Log(args ...interface{})
	Logf(format string, args ...interface{})
	Helper()
	Cleanup(f func())
}

// ConfigureTestLogging allows logs to be associated with individual tests
func ConfigureTestLogging(t tTesting) {
	oldLogger := log.Logger
	oldContextLogger := zerolog.DefaultContextLogger
	configureLogging(levelFromEnv(zerolog.DebugLevel), LogModeDefault, zerolog.ConsoleTestWriter(t))
	t.Cleanup(func() {
		log.Logger = oldLogger
		zerolog.DefaultContextLogger = oldContextLogger
	})
}

// ConfigureLogging applies the configured level and mode. The LOG_LEVEL and
// LOG_TYPE environment variables take precedence.
func ConfigureLogging(level string, mode LogMode) error {
	parsed := zerolog.InfoLevel
	if level != "" {
		var err error
		if parsed, err = ParseLogLevel(level); err != nil {
			return err
		}
	}
	switch mode {
	case "", LogModeDefault, LogModeJSON, LogModeCombined:
	default:
		return fmt.Errorf("unknown log mode %q", mode)
	}
	configureLogging(levelFromEnv(parsed), modeFromEnv(mode))
	return nil
}

// ParseLogLevel parses a zerolog level name.
func ParseLogLevel(s string) (zerolog.Level, error) {
	l, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

func levelFromEnv(fallback zerolog.Level) zerolog.Level {
	if l, err := ParseLogLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
		return l
	}
	return fallback
}

func modeFromEnv(fallback LogMode) LogMode {
	if v := strings.ToLower(os.Getenv("LOG_TYPE")); v != "" {
		return LogMode(v)
	}
	return fallback
}

func configureLogging(level zerolog.Level, mode LogMode, loggingOptions ...func(w *zerolog.ConsoleWriter)) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(level)

	isTerminal := isatty.IsTerminal(os.Stdout.Fd())

	defaultLogging := func(w *zerolog.ConsoleWriter) {
		w.Out = stderr
		w.NoColor = !isTerminal
		w.TimeFormat = "15:04:05.999 |"
		w.PartsOrder = []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.CallerFieldName,
			zerolog.MessageFieldName,
		}

		w.FormatFieldName = func(i interface{}) string {
			return fmt.Sprintf("[%s:", i)
		}

		w.FormatFieldValue = func(i interface{}) string {
			// don't print nil in case field value wasn't preset. e.g. no job id
			if i == nil {
				i = ""
			}
			return fmt.Sprintf("%s]", i)
		}
	}

	loggingOptions = append([]func(w *zerolog.ConsoleWriter){defaultLogging}, loggingOptions...)

	textWriter := zerolog.NewConsoleWriter(loggingOptions...)

	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		short := file

		separatorCount := 2
		countedSeparators := 0

		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				countedSeparators += 1
				if countedSeparators >= separatorCount {
					short = file[i+1:]
					break
				}
			}
		}
		file = short
		return file + ":" + strconv.Itoa(line)
	}

	// we default to text output
	var useLogWriter io.Writer = textWriter

	switch mode {
	case LogModeJSON:
		useLogWriter = os.Stdout
	case LogModeCombined:
		useLogWriter = zerolog.MultiLevelWriter(textWriter, os.Stdout)
	}

	log.Logger = zerolog.New(useLogWriter).With().Timestamp().Caller().Logger()
	// Workers attach job and simulator fields with the ContextWith helpers.
	// Code running without them logs through the DefaultContextLogger.
	zerolog.DefaultContextLogger = &log.Logger
}

// ContextWithJobLogger returns a context whose logger tags every line with the job id.
func ContextWithJobLogger(ctx context.Context, jobID uint64) context.Context {
	l := log.Ctx(ctx).With().Uint64(jobIDFieldName, jobID).Logger()
	return l.WithContext(ctx)
}

// ContextWithSimulatorLogger returns a context whose logger tags every line with the simulator.
func ContextWithSimulatorLogger(ctx context.Context, simulator string) context.Context {
	l := log.Ctx(ctx).With().Str(simulatorFieldName, simulator).Logger()
	return l.WithContext(ctx)
}

// ContextWithWorkerLogger returns a context whose logger tags every line with the worker id.
func ContextWithWorkerLogger(ctx context.Context, workerID string) context.Context {
	if len(workerID) > 8 { //nolint:gomnd // short ids are enough to tell workers apart
		workerID = workerID[:8]
	}
	l := log.Ctx(ctx).With().Str(workerIDFieldName, workerID).Logger()
	return l.WithContext(ctx)
}
