package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagesmith/app/internal/db"
	"pagesmith/app/internal/pages"
	"pagesmith/app/internal/slug"
)

const errorFallbackMessage = "We couldn't process your request right now."

// pageView is the JSON shape of a page across all endpoints.
type pageView struct {
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Status      string          `json:"status"`
	Version     int             `json:"version"`
	Blocks      pages.BlockList `json:"blocks"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// versionView is the JSON shape of one history snapshot.
type versionView struct {
	Version   int             `json:"version"`
	Slug      string          `json:"slug"`
	Title     string          `json:"title"`
	Status    string          `json:"status"`
	Blocks    pages.BlockList `json:"blocks"`
	CreatedAt time.Time       `json:"createdAt"`
}

type pageResponse struct {
	Body pageView
}

type pageListResponse struct {
	Body struct {
		Pages []pageView `json:"pages"`
	}
}

type versionListResponse struct {
	Body struct {
		Slug     string        `json:"slug"`
		Versions []versionView `json:"versions"`
	}
}

type healthResponse struct {
	Status int
	Body   struct {
		Status       string `json:"status"`
		Database     string `json:"database"`
		Pages        int64  `json:"pages"`
		Revalidation string `json:"revalidation"`
	}
}

type createPageInput struct {
	Body struct {
		Title  string          `json:"title,omitempty"`
		Slug   string          `json:"slug,omitempty"`
		Blocks pages.BlockList `json:"blocks,omitempty"`
	}
}

type listPagesInput struct {
	Status string `query:"status"`
	Query  string `query:"q"`
	Limit  int    `query:"limit"`
}

type getPageInput struct {
	Slug  string `path:"slug"`
	Draft bool   `query:"draft"`
}

type updatePageInput struct {
	Slug string `path:"slug"`
	Body struct {
		Title  *string          `json:"title,omitempty"`
		Slug   *string          `json:"slug,omitempty"`
		Blocks *pages.BlockList `json:"blocks,omitempty"`
	}
}

type slugInput struct {
	Slug string `path:"slug"`
}

type restoreVersionInput struct {
	Slug    string `path:"slug"`
	Version int    `path:"version"`
}

func (s *Server) registerPageRoutes() {
	huma.Post(s.api, "/pages", s.createPageHandler, jsonOperation(
		"Create page",
		stdhttp.StatusConflict,
		stdhttp.StatusUnprocessableEntity,
	), withDefaultStatus(stdhttp.StatusCreated))

	huma.Get(s.api, "/pages", s.listPagesHandler, jsonOperation(
		"List pages",
		stdhttp.StatusUnprocessableEntity,
	))

	huma.Get(s.api, "/pages/{slug}", s.getPageHandler, jsonOperation(
		"Fetch page",
		stdhttp.StatusNotFound,
	))

	huma.Patch(s.api, "/pages/{slug}", s.updatePageHandler, jsonOperation(
		"Update page",
		stdhttp.StatusNotFound,
		stdhttp.StatusConflict,
		stdhttp.StatusUnprocessableEntity,
	))
}

func (s *Server) registerLifecycleRoutes() {
	huma.Post(s.api, "/pages/{slug}/publish", s.publishPageHandler, jsonOperation(
		"Publish page",
		stdhttp.StatusNotFound,
		stdhttp.StatusConflict,
		stdhttp.StatusUnprocessableEntity,
	))

	huma.Post(s.api, "/pages/{slug}/unpublish", s.unpublishPageHandler, jsonOperation(
		"Unpublish page",
		stdhttp.StatusNotFound,
		stdhttp.StatusConflict,
	))

	huma.Post(s.api, "/pages/{slug}/archive", s.archivePageHandler, jsonOperation(
		"Archive page",
		stdhttp.StatusNotFound,
	))
}

func (s *Server) registerVersionRoutes() {
	huma.Get(s.api, "/pages/{slug}/versions", s.listVersionsHandler, jsonOperation(
		"List page versions",
		stdhttp.StatusNotFound,
	))

	huma.Post(s.api, "/pages/{slug}/versions/{version}/restore", s.restoreVersionHandler, jsonOperation(
		"Restore page version",
		stdhttp.StatusNotFound,
		stdhttp.StatusConflict,
	))
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) createPageHandler(ctx context.Context, input *createPageInput) (*pageResponse, error) {
	page, err := s.pages.Create(ctx, pages.CreateInput{
		Title:  input.Body.Title,
		Slug:   input.Body.Slug,
		Blocks: input.Body.Blocks,
	})
	if err != nil {
		return nil, s.apiError(ctx, err, "creating page", logrus.Fields{"title": input.Body.Title})
	}

	return &pageResponse{Body: viewFromPage(page)}, nil
}

func (s *Server) listPagesHandler(ctx context.Context, input *listPagesInput) (*pageListResponse, error) {
	listed, err := s.pages.List(ctx, pages.ListInput{
		Status: input.Status,
		Query:  input.Query,
		Limit:  input.Limit,
	})
	if err != nil {
		return nil, s.apiError(ctx, err, "listing pages", logrus.Fields{"status": input.Status})
	}

	resp := &pageListResponse{}
	resp.Body.Pages = make([]pageView, 0, len(listed))
	for i := range listed {
		resp.Body.Pages = append(resp.Body.Pages, viewFromPage(&listed[i]))
	}

	return resp, nil
}

func (s *Server) getPageHandler(ctx context.Context, input *getPageInput) (*pageResponse, error) {
	page, err := s.pages.Get(ctx, input.Slug, input.Draft)
	if err != nil {
		return nil, s.apiError(ctx, err, "loading page", logrus.Fields{"slug": input.Slug})
	}

	return &pageResponse{Body: viewFromPage(page)}, nil
}

func (s *Server) updatePageHandler(ctx context.Context, input *updatePageInput) (*pageResponse, error) {
	page, err := s.pages.Update(ctx, input.Slug, pages.UpdateInput{
		Title:  input.Body.Title,
		Slug:   input.Body.Slug,
		Blocks: input.Body.Blocks,
	})
	if err != nil {
		return nil, s.apiError(ctx, err, "updating page", logrus.Fields{"slug": input.Slug})
	}

	return &pageResponse{Body: viewFromPage(page)}, nil
}

func (s *Server) publishPageHandler(ctx context.Context, input *slugInput) (*pageResponse, error) {
	page, err := s.pages.Publish(ctx, input.Slug)
	if err != nil {
		return nil, s.apiError(ctx, err, "publishing page", logrus.Fields{"slug": input.Slug})
	}

	return &pageResponse{Body: viewFromPage(page)}, nil
}

func (s *Server) unpublishPageHandler(ctx context.Context, input *slugInput) (*pageResponse, error) {
	page, err := s.pages.Unpublish(ctx, input.Slug)
	if err != nil {
		return nil, s.apiError(ctx, err, "unpublishing page", logrus.Fields{"slug": input.Slug})
	}

	return &pageResponse{Body: viewFromPage(page)}, nil
}

func (s *Server) archivePageHandler(ctx context.Context, input *slugInput) (*pageResponse, error) {
	page, err := s.pages.Archive(ctx, input.Slug)
	if err != nil {
		return nil, s.apiError(ctx, err, "archiving page", logrus.Fields{"slug": input.Slug})
	}

	return &pageResponse{Body: viewFromPage(page)}, nil
}

func (s *Server) listVersionsHandler(ctx context.Context, input *slugInput) (*versionListResponse, error) {
	versions, err := s.pages.Versions(ctx, input.Slug)
	if err != nil {
		return nil, s.apiError(ctx, err, "listing page versions", logrus.Fields{"slug": input.Slug})
	}

	resp := &versionListResponse{}
	resp.Body.Slug = input.Slug
	resp.Body.Versions = make([]versionView, 0, len(versions))
	for i := range versions {
		resp.Body.Versions = append(resp.Body.Versions, viewFromVersion(&versions[i]))
	}

	return resp, nil
}

func (s *Server) restoreVersionHandler(ctx context.Context, input *restoreVersionInput) (*pageResponse, error) {
	page, err := s.pages.RestoreVersion(ctx, input.Slug, input.Version)
	if err != nil {
		return nil, s.apiError(ctx, err, "restoring page version", logrus.Fields{
			"slug":    input.Slug,
			"version": input.Version,
		})
	}

	return &pageResponse{Body: viewFromPage(page)}, nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"
	resp.Body.Revalidation = "ready"

	sqlDB, err := db.SQLDB(s.db)
	if err != nil {
		s.recordError(ctx, err, "obtaining sql db", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	} else if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
		s.recordError(ctx, pingErr, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	} else if count, countErr := s.repo.CountPages(ctx); countErr != nil {
		s.recordError(ctx, countErr, "counting pages", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	} else {
		resp.Body.Pages = count
	}

	if !s.revalidator.Enabled() {
		resp.Body.Revalidation = "disabled"
	}

	if resp.Status == 0 {
		resp.Status = stdhttp.StatusOK
	}

	return resp, nil
}

func viewFromPage(page *pages.Page) pageView {
	blocks := page.Blocks
	if blocks == nil {
		blocks = pages.BlockList{}
	}

	return pageView{
		Slug:        page.Slug,
		Title:       page.Title,
		Status:      string(page.Status),
		Version:     page.Version,
		Blocks:      blocks,
		PublishedAt: page.PublishedAt,
		CreatedAt:   page.CreatedAt,
		UpdatedAt:   page.UpdatedAt,
	}
}

func viewFromVersion(version *pages.PageVersion) versionView {
	blocks := version.Blocks
	if blocks == nil {
		blocks = pages.BlockList{}
	}

	return versionView{
		Version:   version.Version,
		Slug:      version.Slug,
		Title:     version.Title,
		Status:    string(version.Status),
		Blocks:    blocks,
		CreatedAt: version.CreatedAt,
	}
}

func jsonOperation(summary string, errorStatuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		op.Errors = append(op.Errors, errorStatuses...)
	}
}

func withDefaultStatus(status int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		op.DefaultStatus = status
	}
}

// classifyError maps service sentinels onto HTTP statuses and client-facing
// detail. Unknown errors stay generic so callers never see internals.
func classifyError(err error) (int, string) {
	if err == nil {
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}

	switch {
	case eris.Is(err, pages.ErrVersionNotFound):
		return stdhttp.StatusNotFound, "that page version does not exist"
	case eris.Is(err, pages.ErrNotFound):
		return stdhttp.StatusNotFound, "that page does not exist"
	case eris.Is(err, pages.ErrDuplicateSlug):
		return stdhttp.StatusConflict, "a page with that slug already exists"
	case eris.Is(err, pages.ErrPageArchived):
		return stdhttp.StatusConflict, "the page is archived"
	case eris.Is(err, slug.ErrInvalid),
		eris.Is(err, pages.ErrSlugReserved),
		eris.Is(err, pages.ErrInvalidBlock),
		eris.Is(err, pages.ErrBrokenLink),
		eris.Is(err, pages.ErrInvalidStatus):
		return stdhttp.StatusUnprocessableEntity, err.Error()
	default:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}
}

// apiError classifies err, logs it, and returns the error huma should render.
// Client mistakes log at warn level; everything else goes through recordError.
func (s *Server) apiError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	status, detail := classifyError(err)
	if status >= stdhttp.StatusInternalServerError {
		s.recordError(ctx, err, message, fields)
	} else {
		s.logRejection(ctx, err, message, fields)
	}

	return huma.NewError(status, detail)
}

func (s *Server) logRejection(ctx context.Context, err error, message string, fields logrus.Fields) {
	if s.logger == nil || err == nil {
		return
	}

	entry := s.logger.WithField("error", err.Error())
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	entry.Warn(message)
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
