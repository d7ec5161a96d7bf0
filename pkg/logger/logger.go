package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// log is the process-wide base logger. Request and user scoped children are
// carried in the context.
var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

type ctxKey struct{}

// Init configures the base logger. Development gets a console writer,
// everything else emits JSON lines tagged with the service name.
func Init(service, env, logLevel string) {
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	dev := env == "development" || env == "dev" || env == ""
	if dev {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(output).With().Timestamp().Str("service", service)
	if dev {
		ctx = ctx.Caller()
	}
	log = ctx.Logger()
}

func Get() *zerolog.Logger {
	return &log
}

// WithContext returns the logger stored in ctx, or the base logger.
func WithContext(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
		return l
	}
	return &log
}

func NewContext(ctx context.Context, l *zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func WithRequestID(requestID string) zerolog.Logger {
	return log.With().Str("request_id", requestID).Logger()
}

func WithUserID(l zerolog.Logger, userID string) zerolog.Logger {
	return l.With().Str("user_id", userID).Logger()
}

// For code without a request context (workers, adapters).
func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }

func ServiceStart(version, port string) {
	log.Info().Str("version", version).Str("port", port).Msg("Service started")
}

func ServiceStop() {
	log.Info().Msg("Service stopped")
}
