package pages

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagesmith/app/internal/content"
	"pagesmith/app/internal/revalidate"
	"pagesmith/app/internal/slug"
)

// Service defines the page lifecycle operations built on top of the
// repository, slug generator, and revalidator.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Page, error)
	Update(ctx context.Context, pageSlug string, input UpdateInput) (*Page, error)
	Get(ctx context.Context, pageSlug string, includeDraft bool) (*Page, error)
	List(ctx context.Context, input ListInput) ([]Page, error)
	Publish(ctx context.Context, pageSlug string) (*Page, error)
	Unpublish(ctx context.Context, pageSlug string) (*Page, error)
	Archive(ctx context.Context, pageSlug string) (*Page, error)
	Versions(ctx context.Context, pageSlug string) ([]PageVersion, error)
	RestoreVersion(ctx context.Context, pageSlug string, version int) (*Page, error)
}

var (
	// ErrNotFound indicates the requested page does not exist or is not
	// visible to the caller.
	ErrNotFound = eris.New("page not found")
	// ErrSlugReserved indicates the slug collides with a reserved route.
	ErrSlugReserved = eris.New("slug is reserved")
	// ErrPageArchived indicates a write was attempted on an archived page.
	ErrPageArchived = eris.New("page is archived")
	// ErrVersionNotFound indicates the requested snapshot does not exist.
	ErrVersionNotFound = eris.New("page version not found")
	// ErrBrokenLink indicates rich text links to pages that do not exist.
	ErrBrokenLink = eris.New("internal link target missing")
	// ErrInvalidStatus indicates an unknown lifecycle state was requested.
	ErrInvalidStatus = eris.New("invalid status")
)

// CreateInput carries the fields for a new page. Slug is optional; when
// absent the generator derives a candidate from the title.
type CreateInput struct {
	Title  string
	Slug   string
	Blocks BlockList
}

// UpdateInput carries a partial edit. Nil fields are left untouched; the slug
// only changes when set explicitly, never because the title changed.
type UpdateInput struct {
	Title  *string
	Slug   *string
	Blocks *BlockList
}

// ListInput narrows List results.
type ListInput struct {
	Status string
	Query  string
	Limit  int
}

// ServiceOptions wires the page service with its dependencies.
type ServiceOptions struct {
	Repository  Repository
	Slugs       *slug.Generator
	Revalidator revalidate.Revalidator
	Reserved    []string
	Logger      *logrus.Logger
	SentryHub   *sentry.Hub
}

type service struct {
	repo        Repository
	slugs       *slug.Generator
	revalidator revalidate.Revalidator
	reserved    map[string]struct{}
	logger      *logrus.Logger
	sentryHub   *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the page service with its dependencies.
func NewService(opts ServiceOptions) (Service, error) {
	if opts.Repository == nil {
		return nil, eris.New("page repository is required")
	}
	if opts.Slugs == nil {
		return nil, eris.New("slug generator is required")
	}
	if opts.Revalidator == nil {
		return nil, eris.New("revalidator is required")
	}

	reserved := make(map[string]struct{}, len(opts.Reserved))
	for _, entry := range opts.Reserved {
		trimmed := strings.ToLower(strings.TrimSpace(entry))
		if trimmed == "" {
			continue
		}
		reserved[trimmed] = struct{}{}
	}

	return &service{
		repo:        opts.Repository,
		slugs:       opts.Slugs,
		revalidator: opts.Revalidator,
		reserved:    reserved,
		logger:      opts.Logger,
		sentryHub:   opts.SentryHub,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Page, error) {
	blocks, err := prepareBlocks(input.Blocks)
	if err != nil {
		s.recordError(logrus.Fields{"title": input.Title}, err, "validating page blocks")
		return nil, err
	}

	resolvedSlug, err := s.resolveSlug(input)
	if err != nil {
		s.recordError(logrus.Fields{"title": input.Title}, err, "resolving page slug")
		return nil, err
	}

	if s.isReserved(resolvedSlug) {
		err := eris.Wrapf(ErrSlugReserved, "slug: %s", resolvedSlug)
		s.recordError(logrus.Fields{"slug": resolvedSlug}, err, "rejecting reserved slug")
		return nil, err
	}

	page := &Page{
		Slug:   resolvedSlug,
		Title:  strings.TrimSpace(input.Title),
		Status: StatusDraft,
		Blocks: blocks,
	}

	if err := s.repo.Create(ctx, page); err != nil {
		s.recordError(logrus.Fields{"slug": resolvedSlug}, err, "persisting new page")
		return nil, eris.Wrapf(err, "creating page: %s", resolvedSlug)
	}

	return page, nil
}

func (s *service) Update(ctx context.Context, pageSlug string, input UpdateInput) (*Page, error) {
	page, err := s.fetch(ctx, pageSlug)
	if err != nil {
		return nil, err
	}

	if page.Status == StatusArchived {
		err := eris.Wrapf(ErrPageArchived, "slug: %s", page.Slug)
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "rejecting edit of archived page")
		return nil, err
	}

	previousSlug := page.Slug

	if input.Title != nil {
		page.Title = strings.TrimSpace(*input.Title)
	}

	if input.Slug != nil {
		requested := strings.TrimSpace(*input.Slug)
		if requested != page.Slug {
			if err := slug.Validate(requested); err != nil {
				s.recordError(logrus.Fields{"slug": requested}, err, "validating requested slug")
				return nil, err
			}
			if s.isReserved(requested) {
				err := eris.Wrapf(ErrSlugReserved, "slug: %s", requested)
				s.recordError(logrus.Fields{"slug": requested}, err, "rejecting reserved slug")
				return nil, err
			}
			page.Slug = requested
		}
	}

	if input.Blocks != nil {
		blocks, err := prepareBlocks(*input.Blocks)
		if err != nil {
			s.recordError(logrus.Fields{"slug": page.Slug}, err, "validating page blocks")
			return nil, err
		}
		page.Blocks = blocks
	}

	if err := s.repo.Update(ctx, page); err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "persisting page update")
		return nil, eris.Wrapf(err, "updating page: %s", page.Slug)
	}

	if page.Status == StatusPublished {
		paths := []string{pagePath(page.Slug)}
		if page.Slug != previousSlug {
			paths = append(paths, pagePath(previousSlug))
		}
		s.revalidatePaths(ctx, paths...)
	}

	return page, nil
}

func (s *service) Get(ctx context.Context, pageSlug string, includeDraft bool) (*Page, error) {
	page, err := s.fetch(ctx, pageSlug)
	if err != nil {
		return nil, err
	}

	if page.Status == StatusArchived {
		return nil, eris.Wrapf(ErrNotFound, "slug: %s", page.Slug)
	}
	if page.Status == StatusDraft && !includeDraft {
		return nil, eris.Wrapf(ErrNotFound, "slug: %s", page.Slug)
	}

	return page, nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]Page, error) {
	filter := Filter{Query: input.Query, Limit: input.Limit}

	if trimmed := strings.TrimSpace(input.Status); trimmed != "" {
		status := Status(trimmed)
		if !status.Valid() {
			return nil, eris.Wrapf(ErrInvalidStatus, "status: %s", trimmed)
		}
		filter.Status = status
	}

	listed, err := s.repo.List(ctx, filter)
	if err != nil {
		s.recordError(nil, err, "listing pages")
		return nil, eris.Wrap(err, "listing pages")
	}

	return listed, nil
}

func (s *service) Publish(ctx context.Context, pageSlug string) (*Page, error) {
	page, err := s.fetch(ctx, pageSlug)
	if err != nil {
		return nil, err
	}

	if page.Status == StatusArchived {
		err := eris.Wrapf(ErrPageArchived, "slug: %s", page.Slug)
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "rejecting publish of archived page")
		return nil, err
	}
	if page.Status == StatusPublished {
		return page, nil
	}

	if err := s.validateInternalLinks(ctx, page); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	page.Status = StatusPublished
	page.PublishedAt = &now

	if err := s.repo.Update(ctx, page); err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "persisting publish")
		return nil, eris.Wrapf(err, "publishing page: %s", page.Slug)
	}

	s.revalidatePaths(ctx, pagePath(page.Slug))

	return page, nil
}

func (s *service) Unpublish(ctx context.Context, pageSlug string) (*Page, error) {
	page, err := s.fetch(ctx, pageSlug)
	if err != nil {
		return nil, err
	}

	if page.Status == StatusArchived {
		err := eris.Wrapf(ErrPageArchived, "slug: %s", page.Slug)
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "rejecting unpublish of archived page")
		return nil, err
	}
	if page.Status == StatusDraft {
		return page, nil
	}

	page.Status = StatusDraft
	page.PublishedAt = nil

	if err := s.repo.Update(ctx, page); err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "persisting unpublish")
		return nil, eris.Wrapf(err, "unpublishing page: %s", page.Slug)
	}

	s.revalidatePaths(ctx, pagePath(page.Slug))

	return page, nil
}

func (s *service) Archive(ctx context.Context, pageSlug string) (*Page, error) {
	page, err := s.fetch(ctx, pageSlug)
	if err != nil {
		return nil, err
	}

	if page.Status == StatusArchived {
		return page, nil
	}

	wasPublished := page.Status == StatusPublished
	page.Status = StatusArchived

	if err := s.repo.Update(ctx, page); err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "persisting archive")
		return nil, eris.Wrapf(err, "archiving page: %s", page.Slug)
	}

	if wasPublished {
		s.revalidatePaths(ctx, pagePath(page.Slug))
	}

	return page, nil
}

func (s *service) Versions(ctx context.Context, pageSlug string) ([]PageVersion, error) {
	page, err := s.fetch(ctx, pageSlug)
	if err != nil {
		return nil, err
	}

	versions, err := s.repo.Versions(ctx, page.Slug)
	if err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "listing page versions")
		return nil, eris.Wrapf(err, "listing versions for page: %s", page.Slug)
	}

	return versions, nil
}

func (s *service) RestoreVersion(ctx context.Context, pageSlug string, version int) (*Page, error) {
	page, err := s.fetch(ctx, pageSlug)
	if err != nil {
		return nil, err
	}

	if page.Status == StatusArchived {
		err := eris.Wrapf(ErrPageArchived, "slug: %s", page.Slug)
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "rejecting restore on archived page")
		return nil, err
	}

	record, err := s.repo.GetVersion(ctx, page.Slug, version)
	if err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug, "version": version}, err, "fetching page version")
		return nil, eris.Wrapf(err, "fetching version %d for page: %s", version, page.Slug)
	}
	if record == nil {
		return nil, eris.Wrapf(ErrVersionNotFound, "page %s version %d", page.Slug, version)
	}

	// The snapshot's title and blocks are re-applied as a new version; the
	// live slug and status stay as they are.
	page.Title = record.Title
	page.Blocks = record.Blocks

	if err := s.repo.Update(ctx, page); err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug, "version": version}, err, "persisting restored version")
		return nil, eris.Wrapf(err, "restoring version %d for page: %s", version, page.Slug)
	}

	if page.Status == StatusPublished {
		s.revalidatePaths(ctx, pagePath(page.Slug))
	}

	return page, nil
}

// fetch loads a page by slug and normalises the missing case to ErrNotFound.
func (s *service) fetch(ctx context.Context, pageSlug string) (*Page, error) {
	trimmed := strings.TrimSpace(pageSlug)
	if trimmed == "" {
		return nil, eris.New("slug is required")
	}

	page, err := s.repo.GetBySlug(ctx, trimmed)
	if err != nil {
		s.recordError(logrus.Fields{"slug": trimmed}, err, "retrieving page from repository")
		return nil, eris.Wrapf(err, "retrieving page: %s", trimmed)
	}
	if page == nil {
		return nil, eris.Wrapf(ErrNotFound, "slug: %s", trimmed)
	}

	return page, nil
}

func (s *service) resolveSlug(input CreateInput) (string, error) {
	explicit := strings.TrimSpace(input.Slug)
	if explicit != "" {
		if err := slug.Validate(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	return s.slugs.FromTitle(input.Title), nil
}

func (s *service) isReserved(value string) bool {
	_, reserved := s.reserved[strings.ToLower(value)]
	return reserved
}

// validateInternalLinks checks every rich-text link target against the store
// before a page goes live.
func (s *service) validateInternalLinks(ctx context.Context, page *Page) error {
	links := internalLinks(page.Blocks)
	if len(links) == 0 {
		return nil
	}

	existing, err := s.repo.ExistingSlugs(ctx, links)
	if err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "checking internal link targets")
		return eris.Wrapf(err, "checking internal links for page: %s", page.Slug)
	}

	missing := make([]string, 0)
	for _, link := range links {
		if !existing[link] {
			missing = append(missing, link)
		}
	}

	if len(missing) > 0 {
		err := eris.Wrapf(ErrBrokenLink, "missing targets: %s", strings.Join(missing, ", "))
		s.recordError(logrus.Fields{"slug": page.Slug, "targets": strings.Join(missing, ",")}, err, "rejecting publish with broken links")
		return err
	}

	return nil
}

// revalidatePaths asks the frontend to refresh its cache. Failures are
// observability events, never save failures.
func (s *service) revalidatePaths(ctx context.Context, paths ...string) {
	if s.revalidator == nil || !s.revalidator.Enabled() {
		return
	}

	if err := s.revalidator.Revalidate(ctx, paths); err != nil {
		s.recordError(logrus.Fields{"paths": strings.Join(paths, ",")}, err, "revalidating frontend paths")
	}
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}

func prepareBlocks(blocks BlockList) (BlockList, error) {
	if err := blocks.Validate(); err != nil {
		return nil, err
	}

	prepared := make(BlockList, len(blocks))
	copy(prepared, blocks)

	for idx := range prepared {
		if prepared[idx].Type != BlockRichText {
			continue
		}
		cleaned, err := content.Sanitize(prepared[idx].HTML)
		if err != nil {
			return nil, eris.Wrapf(ErrInvalidBlock, "block %d: %s", idx, err.Error())
		}
		prepared[idx].HTML = cleaned
	}

	return prepared, nil
}

func internalLinks(blocks BlockList) []string {
	seen := make(map[string]struct{})
	links := make([]string, 0)

	for _, block := range blocks {
		if block.Type != BlockRichText {
			continue
		}
		for _, target := range content.InternalLinks(block.HTML) {
			if _, ok := seen[target]; ok {
				continue
			}
			seen[target] = struct{}{}
			links = append(links, target)
		}
	}

	return links
}

func pagePath(pageSlug string) string {
	return "/" + pageSlug
}
