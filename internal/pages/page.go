package pages

import (
	"time"

	"gorm.io/gorm"
)

// Status is the lifecycle state of a page.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether the value is one of the three lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Page is a storefront content page persisted in the database. The slug is
// its routing identity; the unique index is the authority on slug uniqueness.
type Page struct {
	gorm.Model
	Slug        string    `gorm:"size:255;uniqueIndex:idx_pages_slug;not null"`
	Title       string    `gorm:"type:text;not null"`
	Status      Status    `gorm:"size:16;index:idx_pages_status;not null;default:draft"`
	Blocks      BlockList `gorm:"type:text;serializer:json"`
	Version     int       `gorm:"not null;default:0"`
	PublishedAt *time.Time
}

// TableName defines the table name for the Page model.
func (Page) TableName() string {
	return "pages"
}

// PageVersion is an immutable snapshot of a page taken on every write. The
// slug is recorded as it was at snapshot time; restoring a version never
// rewrites the live slug.
type PageVersion struct {
	gorm.Model
	PageID  uint      `gorm:"uniqueIndex:idx_page_versions_page_version;not null"`
	Version int       `gorm:"uniqueIndex:idx_page_versions_page_version;not null"`
	Slug    string    `gorm:"size:255;not null"`
	Title   string    `gorm:"type:text;not null"`
	Status  Status    `gorm:"size:16;not null"`
	Blocks  BlockList `gorm:"type:text;serializer:json"`
}

// TableName defines the table name for the PageVersion model.
func (PageVersion) TableName() string {
	return "page_versions"
}
