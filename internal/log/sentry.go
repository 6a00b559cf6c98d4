package log

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrylogrus "github.com/getsentry/sentry-go/logrus"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const sentryFlushTimeout = 2 * time.Second

// SentryOptions carries the configuration required to bootstrap Sentry.
type SentryOptions struct {
	DSN         string
	Environment string
	Release     string
}

// InitSentry wires up Sentry exception capture and hooks it into the provided
// logrus logger. With an empty DSN it returns a nil hub and a no-op flush, and
// the rest of the application runs without Sentry.
func InitSentry(logger *logrus.Logger, opts SentryOptions) (*sentry.Hub, func(), error) {
	if opts.DSN == "" {
		return nil, func() {}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "initializing sentry client")
	}

	hub := sentry.NewHub(client, sentry.NewScope())

	hook := sentrylogrus.NewLogHookFromClient([]logrus.Level{
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}, client)
	logger.AddHook(hook)

	flush := func() {
		hub.Flush(sentryFlushTimeout)
	}

	return hub, flush, nil
}
