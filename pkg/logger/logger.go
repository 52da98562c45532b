package logger

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

var (
	log *logrus.Logger
	nop = newNop()
)

func newNop() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func Init(level, format string) error {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	l.SetOutput(os.Stdout)
	log = l

	return nil
}

func std() *logrus.Logger {
	if log != nil {
		return log
	}
	return nop
}

// WithRequestID returns a context whose logger entry carries the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, std().WithField("request_id", requestID))
}

// FromContext returns the request-scoped entry, or a bare entry when none was attached.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(std())
}

func Debugf(format string, args ...interface{}) {
	std().Debugf(format, args...)
}

func Info(args ...interface{}) {
	std().Info(args...)
}

func Infof(format string, args ...interface{}) {
	std().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	std().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	if log == nil {
		fmt.Printf("ERROR: "+format+"\n", args...)
		return
	}
	log.Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	if log == nil {
		fmt.Printf("FATAL: "+format+"\n", args...)
		os.Exit(1)
	}
	log.Fatalf(format, args...)
}
