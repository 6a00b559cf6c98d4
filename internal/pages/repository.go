package pages

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrDuplicateSlug indicates the unique slug index rejected a write.
var ErrDuplicateSlug = eris.New("page slug already exists")

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Filter narrows List results. Zero values mean no filtering.
type Filter struct {
	Status Status
	Query  string
	Limit  int
}

// Repository defines persistence operations for pages and their versions.
type Repository interface {
	Create(ctx context.Context, page *Page) error
	Update(ctx context.Context, page *Page) error
	GetBySlug(ctx context.Context, slug string) (*Page, error)
	List(ctx context.Context, filter Filter) ([]Page, error)
	CountPages(ctx context.Context) (int64, error)
	ExistingSlugs(ctx context.Context, slugs []string) (map[string]bool, error)
	Versions(ctx context.Context, slug string) ([]PageVersion, error)
	GetVersion(ctx context.Context, slug string, version int) (*PageVersion, error)
}

// GormRepository persists pages using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

// Create stores a new page together with its version-1 snapshot in one
// transaction. Unique-index violations surface as ErrDuplicateSlug.
func (r *GormRepository) Create(ctx context.Context, page *Page) error {
	if page == nil {
		return eris.New("page is nil")
	}

	trimmedSlug := strings.TrimSpace(page.Slug)
	if trimmedSlug == "" {
		return eris.New("page slug is required")
	}
	page.Slug = trimmedSlug
	page.Version = 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(page).Error; err != nil {
			return err
		}
		return tx.Create(snapshot(page)).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			dupErr := eris.Wrapf(ErrDuplicateSlug, "creating page: %s", trimmedSlug)
			r.logError(logrus.Fields{"slug": trimmedSlug}, dupErr, "creating page with duplicate slug")
			return dupErr
		}
		r.logError(logrus.Fields{"slug": trimmedSlug}, err, "creating page")
		return eris.Wrapf(err, "creating page: %s", trimmedSlug)
	}

	return nil
}

// Update bumps the version counter, saves the page, and snapshots the new
// state in one transaction. Slug edits can collide, so the duplicate
// translation applies here too.
func (r *GormRepository) Update(ctx context.Context, page *Page) error {
	if page == nil {
		return eris.New("page is nil")
	}
	if page.ID == 0 {
		return eris.New("page has not been persisted")
	}

	trimmedSlug := strings.TrimSpace(page.Slug)
	if trimmedSlug == "" {
		return eris.New("page slug is required")
	}
	page.Slug = trimmedSlug
	page.Version++

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(page).Error; err != nil {
			return err
		}
		return tx.Create(snapshot(page)).Error
	})
	if err != nil {
		page.Version--
		if isDuplicateKey(err) {
			dupErr := eris.Wrapf(ErrDuplicateSlug, "updating page: %s", trimmedSlug)
			r.logError(logrus.Fields{"slug": trimmedSlug}, dupErr, "updating page to duplicate slug")
			return dupErr
		}
		r.logError(logrus.Fields{"slug": trimmedSlug}, err, "updating page")
		return eris.Wrapf(err, "updating page: %s", trimmedSlug)
	}

	return nil
}

// GetBySlug returns the page for the provided slug or nil when not found.
func (r *GormRepository) GetBySlug(ctx context.Context, slug string) (*Page, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return nil, eris.New("slug is required")
	}

	var page Page
	err := r.db.WithContext(ctx).First(&page, "slug = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"slug": trimmed}, err, "fetching page by slug")
		return nil, eris.Wrapf(err, "fetching page by slug: %s", trimmed)
	}

	return &page, nil
}

// List returns pages ordered by slug, narrowed by the filter. The limit is
// clamped to keep responses bounded.
func (r *GormRepository) List(ctx context.Context, filter Filter) ([]Page, error) {
	query := r.db.WithContext(ctx).Model(&Page{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(q)+"%")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var pages []Page
	if err := query.Order("slug ASC").Limit(limit).Find(&pages).Error; err != nil {
		r.logError(nil, err, "listing pages")
		return nil, eris.Wrap(err, "listing pages")
	}

	return pages, nil
}

// CountPages returns the total number of persisted pages.
func (r *GormRepository) CountPages(ctx context.Context) (int64, error) {
	var count int64

	if err := r.db.WithContext(ctx).Model(&Page{}).Count(&count).Error; err != nil {
		r.logError(nil, err, "counting pages")
		return 0, eris.Wrap(err, "counting pages")
	}

	return count, nil
}

// ExistingSlugs reports which of the given slugs are taken, in one query.
func (r *GormRepository) ExistingSlugs(ctx context.Context, slugs []string) (map[string]bool, error) {
	found := make(map[string]bool, len(slugs))
	if len(slugs) == 0 {
		return found, nil
	}

	var existing []string
	err := r.db.WithContext(ctx).
		Model(&Page{}).
		Where("slug IN ?", slugs).
		Pluck("slug", &existing).Error
	if err != nil {
		r.logError(nil, err, "querying existing slugs")
		return nil, eris.Wrap(err, "querying existing slugs")
	}

	for _, slug := range existing {
		found[slug] = true
	}

	return found, nil
}

// Versions returns every snapshot of the page in ascending version order.
func (r *GormRepository) Versions(ctx context.Context, slug string) ([]PageVersion, error) {
	page, err := r.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	var versions []PageVersion
	err = r.db.WithContext(ctx).
		Where("page_id = ?", page.ID).
		Order("version ASC").
		Find(&versions).Error
	if err != nil {
		r.logError(logrus.Fields{"slug": page.Slug}, err, "listing page versions")
		return nil, eris.Wrapf(err, "listing versions for page: %s", page.Slug)
	}

	return versions, nil
}

// GetVersion returns one snapshot of the page or nil when either the page or
// the version is missing.
func (r *GormRepository) GetVersion(ctx context.Context, slug string, version int) (*PageVersion, error) {
	page, err := r.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	var record PageVersion
	err = r.db.WithContext(ctx).
		First(&record, "page_id = ? AND version = ?", page.ID, version).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"slug": page.Slug, "version": version}, err, "fetching page version")
		return nil, eris.Wrapf(err, "fetching version %d for page: %s", version, page.Slug)
	}

	return &record, nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil || err == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

func snapshot(page *Page) *PageVersion {
	return &PageVersion{
		PageID:  page.ID,
		Version: page.Version,
		Slug:    page.Slug,
		Title:   page.Title,
		Status:  page.Status,
		Blocks:  page.Blocks,
	}
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique")
}
