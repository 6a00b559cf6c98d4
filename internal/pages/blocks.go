package pages

import (
	"strings"

	"github.com/rotisserie/eris"

	"pagesmith/app/internal/slug"
)

// BlockType discriminates the content-block variants a page is built from.
type BlockType string

const (
	BlockHero         BlockType = "hero"
	BlockRichText     BlockType = "richText"
	BlockProductGrid  BlockType = "productGrid"
	BlockCallToAction BlockType = "callToAction"
)

// ErrInvalidBlock marks content-block validation failures so the transport
// can map them to a client error.
var ErrInvalidBlock = eris.New("invalid block")

// Block is one section of a page. Only the fields belonging to its Type are
// read; Validate enforces the per-type requirements.
type Block struct {
	Type       BlockType `json:"type"`
	Heading    string    `json:"heading,omitempty"`
	Subheading string    `json:"subheading,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	HTML       string    `json:"html,omitempty"`
	Products   []string  `json:"products,omitempty"`
	Label      string    `json:"label,omitempty"`
	Target     string    `json:"target,omitempty"`
}

// Validate checks the required fields for the block's type.
func (b Block) Validate() error {
	switch b.Type {
	case BlockHero:
		if strings.TrimSpace(b.Heading) == "" {
			return eris.Wrap(ErrInvalidBlock, "hero block requires a heading")
		}
	case BlockRichText:
		if strings.TrimSpace(b.HTML) == "" {
			return eris.Wrap(ErrInvalidBlock, "richText block requires html content")
		}
	case BlockProductGrid:
		if len(b.Products) == 0 {
			return eris.Wrap(ErrInvalidBlock, "productGrid block requires at least one product handle")
		}
		for _, handle := range b.Products {
			if err := slug.Validate(handle); err != nil {
				return eris.Wrapf(ErrInvalidBlock, "productGrid handle %q is not a valid slug", handle)
			}
		}
	case BlockCallToAction:
		if strings.TrimSpace(b.Label) == "" {
			return eris.Wrap(ErrInvalidBlock, "callToAction block requires a label")
		}
		if strings.TrimSpace(b.Target) == "" {
			return eris.Wrap(ErrInvalidBlock, "callToAction block requires a target")
		}
	default:
		return eris.Wrapf(ErrInvalidBlock, "unknown block type %q", string(b.Type))
	}

	return nil
}

// BlockList is the ordered block composition of a page, stored as a JSON
// column via Gorm's serializer.
type BlockList []Block

// Validate checks every block and reports the first failure with its index.
func (l BlockList) Validate() error {
	for idx, block := range l {
		if err := block.Validate(); err != nil {
			return eris.Wrapf(err, "block %d", idx)
		}
	}
	return nil
}
