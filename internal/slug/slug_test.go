package slug

import (
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
)

var (
	untitledFallback  = regexp.MustCompile(`^untitled-page-[0-9a-f]{8}$`)
	exceptionFallback = regexp.MustCompile(`^page-.+$`)
)

// constantReader feeds an endless stream of a single byte so fallback suffixes
// become deterministic.
type constantReader byte

func (r constantReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

func TestFromTitleConcreteCases(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(Options{})

	cases := []struct {
		name  string
		title string
		want  string
	}{
		{"plain ascii", "My Test Page", "my-test-page"},
		{"accented latin", "Café François", "cafe-francois"},
		{"nordic substitutions", "Åland Øl", "aland-ol"},
		{"multiple spaces", "multiple   spaces   here", "multiple-spaces-here"},
		{"leading and trailing hyphens", "-leading and trailing-", "leading-and-trailing"},
		{"mixed separators", "one - two -- three", "one-two-three"},
		{"digits preserved", "Top 10 Products of 2026", "top-10-products-of-2026"},
		{"ampersand dropped", "Fish & Chips", "fish-chips"},
		{"tabs and newlines", "hello\t\nworld", "hello-world"},
		{"german sharp s", "Straße", "strasse"},
		{"already canonical", "already-valid-slug", "already-valid-slug"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := generator.FromTitle(tc.title)
			if got != tc.want {
				t.Fatalf("FromTitle(%q) = %q, want %q", tc.title, got, tc.want)
			}
		})
	}
}

func TestFromTitleFallbackForDegenerateInput(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(Options{})

	for _, title := range []string{"", "!!!", "   ", "???!!!", "🎉🎉🎉", "---"} {
		got := generator.FromTitle(title)
		if !untitledFallback.MatchString(got) {
			t.Fatalf("FromTitle(%q) = %q, want untitled fallback", title, got)
		}
	}
}

func TestFromTitleFallbackIsDeterministicWithInjectedSource(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(Options{Rand: constantReader(0xAB)})

	got := generator.FromTitle("")
	if got != "untitled-page-abababab" {
		t.Fatalf("expected deterministic fallback untitled-page-abababab, got %q", got)
	}
}

func TestSuffixFormat(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(Options{Rand: constantReader(0xCD)})

	if got := generator.suffix(); got != "cdcdcdcd" {
		t.Fatalf("expected suffix cdcdcdcd, got %q", got)
	}
}

func TestFromTitleTruncatesTo255(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(Options{})

	got := generator.FromTitle(strings.Repeat("a", 300))
	if len(got) != 255 {
		t.Fatalf("expected length 255, got %d", len(got))
	}
	if got != strings.Repeat("a", 255) {
		t.Fatalf("expected 255 repeated 'a', got %q", got)
	}
}

func TestFromTitleTruncationStripsDanglingHyphen(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(Options{})

	// "aaaa " repeats as "aaaa-" in the slug, so the 255-byte cut lands
	// exactly on a hyphen that must then be stripped.
	got := generator.FromTitle(strings.Repeat("aaaa ", 60))
	if len(got) != 254 {
		t.Fatalf("expected length 254 after trimming the cut hyphen, got %d", len(got))
	}
	if strings.HasSuffix(got, "-") {
		t.Fatalf("expected no trailing hyphen, got %q", got)
	}
}

func TestFromTitleOutputFamilies(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(Options{})

	inputs := []string{
		"", "!!!", "My Test Page", "Åland Øl", "日本語タイトル", "a&b|c",
		"  spaced  out  ", strings.Repeat("xyz ", 100), "ümlaut Ünd mörê",
		"  nbsp em-space　wide", "emoji 🎉 inside", "-",
	}

	for _, title := range inputs {
		got := generator.FromTitle(title)

		if len(got) > MaxLength {
			t.Fatalf("FromTitle(%q) length %d exceeds %d", title, len(got), MaxLength)
		}
		if strings.HasPrefix(got, "-") || strings.HasSuffix(got, "-") {
			t.Fatalf("FromTitle(%q) = %q has edge hyphen", title, got)
		}
		if !IsCanonical(got) && !untitledFallback.MatchString(got) && !exceptionFallback.MatchString(got) {
			t.Fatalf("FromTitle(%q) = %q matches no output family", title, got)
		}
	}
}

func TestFromTitleIsStableOnCanonicalInput(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(Options{})

	first := generator.FromTitle("Release Notes, Q3 2026")
	second := generator.FromTitle(first)

	if first != second {
		t.Fatalf("pipeline not stable: %q -> %q", first, second)
	}
}

func TestFromTitleSafeForConcurrentUse(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(Options{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if got := generator.FromTitle("Café François"); got != "cafe-francois" {
					t.Errorf("concurrent FromTitle returned %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := []string{"a", "about-us", "summer-sale-2026", "a--b", "0-9"}
	for _, value := range valid {
		if err := Validate(value); err != nil {
			t.Fatalf("Validate(%q) returned error: %v", value, err)
		}
	}

	invalid := []string{"", "-leading", "trailing-", "Upper-Case", "spa ce", "ünicode", "dot.sep", strings.Repeat("a", 256)}
	for _, value := range invalid {
		err := Validate(value)
		if err == nil {
			t.Fatalf("Validate(%q) expected error", value)
		}
		if !eris.Is(err, ErrInvalid) {
			t.Fatalf("Validate(%q) error does not wrap ErrInvalid: %v", value, err)
		}
	}
}

func TestIsCanonical(t *testing.T) {
	t.Parallel()

	canonical := []string{"a", "my-test-page", "top-10", "untitled-page-abababab"}
	for _, value := range canonical {
		if !IsCanonical(value) {
			t.Fatalf("IsCanonical(%q) = false, want true", value)
		}
	}

	notCanonical := []string{"", "-a", "a-", "a--b", "A-b", "a b", strings.Repeat("a", 256)}
	for _, value := range notCanonical {
		if IsCanonical(value) {
			t.Fatalf("IsCanonical(%q) = true, want false", value)
		}
	}
}
