package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pagesmith/app/internal/config"
	"pagesmith/app/internal/db"
	pagesmithhttp "pagesmith/app/internal/http"
	"pagesmith/app/internal/pages"
	"pagesmith/app/internal/revalidate"
	"pagesmith/app/internal/slug"
)

type Dependencies struct {
	Config    config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

type Result struct {
	PageService pages.Service
	HTTPServer  *pagesmithhttp.Server
	Database    *gorm.DB
	Cleanup     func() error
}

// Build composes the Pagesmith application layers and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	gormDB, err := db.Open(db.Options{Path: deps.Config.DBPath})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := db.Close(gormDB); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := pages.Migrate(ctx, gormDB, deps.Logger); err != nil {
		return closeOnError(eris.Wrap(err, "running page migrations"))
	}

	repo, err := pages.NewRepository(gormDB, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating page repository"))
	}

	slugs := slug.NewGenerator(slug.Options{Logger: deps.Logger})

	var revalidator revalidate.Revalidator = revalidate.NoopRevalidator{}
	if deps.Config.RevalidateURL != "" {
		httpRevalidator, err := revalidate.NewHTTPRevalidator(revalidate.Options{
			Endpoint: deps.Config.RevalidateURL,
			Secret:   deps.Config.RevalidateSecret,
			Logger:   deps.Logger,
		})
		if err != nil {
			return closeOnError(eris.Wrap(err, "creating revalidator"))
		}
		revalidator = httpRevalidator
	}

	pageService, err := pages.NewService(pages.ServiceOptions{
		Repository:  repo,
		Slugs:       slugs,
		Revalidator: revalidator,
		Reserved:    deps.Config.ReservedSlugs,
		Logger:      deps.Logger,
		SentryHub:   deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating page service"))
	}

	httpServer, err := pagesmithhttp.NewServer(pagesmithhttp.Options{
		PageService: pageService,
		Repository:  repo,
		Database:    gormDB,
		Revalidator: revalidator,
		Logger:      deps.Logger,
		SentryHub:   deps.SentryHub,
		RateLimiter: pagesmithhttp.RateLimiterSettings{
			Burst:             deps.Config.RateLimit.Burst,
			RequestsPerSecond: deps.Config.RateLimit.RequestsPerSecond,
			ClientTTL:         deps.Config.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	cleanup := func() error {
		httpServer.Close()
		return db.Close(gormDB)
	}

	return Result{
		PageService: pageService,
		HTTPServer:  httpServer,
		Database:    gormDB,
		Cleanup:     cleanup,
	}, nil
}
