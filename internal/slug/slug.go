// Package slug derives URL-path identifiers from user-supplied page titles.
//
// Slug generation is a pure transformation: it produces a candidate string and
// nothing else. Uniqueness across the page collection is enforced by the
// persistence layer, which is the final authority on collisions.
package slug

import (
	cryptorand "crypto/rand"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength bounds every slug, generated or manually supplied.
const MaxLength = 255

// ErrInvalid indicates a manually supplied slug violates the save-time contract.
var ErrInvalid = eris.New("invalid slug")

var (
	nonSlugChars   = regexp.MustCompile(`[^a-z0-9\s-]+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	hyphenRuns     = regexp.MustCompile(`-{2,}`)

	canonicalPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	manualPattern    = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// substitutions maps letters that survive NFKD decomposition intact to ASCII
// replacements. Generic decomposition splits "é" into "e" plus a combining
// mark, but code points like "ø" or "æ" have no decomposition at all and would
// otherwise be dropped wholesale by the character filter.
var substitutions = strings.NewReplacer(
	"ø", "o",
	"å", "a",
	"æ", "ae",
	"œ", "oe",
	"ß", "ss",
	"ð", "d",
	"þ", "th",
	"ł", "l",
	"đ", "d",
)

// Options controls how the Generator is initialised.
type Options struct {
	// Rand supplies the entropy for fallback suffixes. Defaults to crypto/rand.
	Rand io.Reader
	// Logger receives pipeline failure reports. Optional.
	Logger *logrus.Logger
}

// Generator turns titles into slug candidates. The random source is injected
// so tests can assert exact fallback values.
type Generator struct {
	rand   io.Reader
	logger *logrus.Logger
}

// NewGenerator constructs a Generator, defaulting the random source to
// crypto/rand when none is supplied.
func NewGenerator(opts Options) *Generator {
	source := opts.Rand
	if source == nil {
		source = cryptorand.Reader
	}

	return &Generator{rand: source, logger: opts.Logger}
}

// FromTitle converts an arbitrary title into a slug candidate. It never fails:
// degenerate input yields an "untitled-page-" fallback and an unexpected
// pipeline failure yields a "page-" fallback, so document creation is never
// blocked by slug derivation.
func (g *Generator) FromTitle(title string) string {
	candidate, err := normalize(title)
	if err != nil {
		g.logError(logrus.Fields{"title_bytes": len(title)}, err, "slug pipeline failed")
		return truncate("page-" + g.suffix())
	}

	if candidate == "" {
		return truncate("untitled-page-" + g.suffix())
	}

	return truncate(candidate)
}

// normalize runs the transformation pipeline. The step order matters: the
// substitution table must run before decomposition, and hyphen collapsing must
// run after whitespace collapsing so mixed runs like " - - " reduce to one
// hyphen.
func normalize(title string) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = eris.Errorf("slug pipeline panic: %v", rec)
		}
	}()

	s := strings.ToLower(title)
	s = substitutions.Replace(s)

	// Decompose accented characters and strip the resulting combining marks
	// (U+0300-U+036F and friends). The transformer carries state, so build a
	// fresh chain per call to keep the generator safe for concurrent use.
	decomposer := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	s, _, terr := transform.String(decomposer, s)
	if terr != nil {
		return "", eris.Wrap(terr, "decomposing title")
	}

	s = nonSlugChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = whitespaceRuns.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")

	return strings.Trim(s, "-"), nil
}

// suffix returns the first segment of a V4 UUID drawn from the injected
// source: eight hex characters, random enough that concurrent fallback
// creations need no coordination.
func (g *Generator) suffix() string {
	id, err := uuid.NewRandomFromReader(g.rand)
	if err != nil {
		g.logError(nil, err, "injected random source failed, using package default")
		id = uuid.New()
	}

	return id.String()[:8]
}

func truncate(s string) string {
	if len(s) <= MaxLength {
		return s
	}

	// The pipeline output is pure ASCII, so cutting on a byte boundary is safe.
	return strings.TrimRight(s[:MaxLength], "-")
}

func (g *Generator) logError(fields logrus.Fields, err error, message string) {
	if g.logger == nil || err == nil {
		return
	}

	entry := g.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

// Validate checks a manually supplied slug against the save-time contract:
// non-empty, lowercase alphanumerics and hyphens only, no leading or trailing
// hyphen, at most MaxLength bytes. Violations wrap ErrInvalid so callers can
// classify them as field-level validation failures.
func Validate(value string) error {
	if value == "" {
		return eris.Wrap(ErrInvalid, "slug must not be empty")
	}
	if !manualPattern.MatchString(value) {
		return eris.Wrap(ErrInvalid, "slug may only contain lowercase letters, digits and hyphens")
	}
	if strings.HasPrefix(value, "-") || strings.HasSuffix(value, "-") {
		return eris.Wrap(ErrInvalid, "slug must not start or end with a hyphen")
	}
	if len(value) > MaxLength {
		return eris.Wrapf(ErrInvalid, "slug exceeds %d characters", MaxLength)
	}

	return nil
}

// IsCanonical reports whether value is in the strict generated form: hyphen
// separated lowercase alphanumeric segments with no doubled hyphens.
func IsCanonical(value string) bool {
	return len(value) <= MaxLength && canonicalPattern.MatchString(value)
}
