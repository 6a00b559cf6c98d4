package content

import (
	"strings"
	"testing"
)

func TestSanitizeUnwrapsDocumentChrome(t *testing.T) {
	t.Parallel()

	input := `<!DOCTYPE html><html><head><title>Ignored</title></head><body><h1>Title</h1><p>Body</p></body></html>`
	cleaned, err := Sanitize(input)
	if err != nil {
		t.Fatalf("Sanitize returned error: %v", err)
	}

	const expected = `<h1>Title</h1><p>Body</p>`
	if cleaned != expected {
		t.Fatalf("expected %q, got %q", expected, cleaned)
	}
}

func TestSanitizePreservesInlineWhitespace(t *testing.T) {
	t.Parallel()

	input := `<body><p><span>Alpha</span> <span>Beta</span></p></body>`
	cleaned, err := Sanitize(input)
	if err != nil {
		t.Fatalf("Sanitize returned error: %v", err)
	}

	const expected = `<p><span>Alpha</span> <span>Beta</span></p>`
	if cleaned != expected {
		t.Fatalf("expected inline whitespace preserved, got %q", cleaned)
	}
}

func TestSanitizeDropsActiveContent(t *testing.T) {
	t.Parallel()

	input := `<p onclick="steal()">Hi <a href="javascript:alert(1)">here</a></p><script>evil()</script><style>p{}</style><iframe src="https://evil.example"></iframe>`
	cleaned, err := Sanitize(input)
	if err != nil {
		t.Fatalf("Sanitize returned error: %v", err)
	}

	const expected = `<p>Hi <a>here</a></p>`
	if cleaned != expected {
		t.Fatalf("expected %q, got %q", expected, cleaned)
	}
}

func TestSanitizeKeepsSafeAttributes(t *testing.T) {
	t.Parallel()

	input := `<p class="lede">See <a href="/about-us" target="_blank">about</a></p>`
	cleaned, err := Sanitize(input)
	if err != nil {
		t.Fatalf("Sanitize returned error: %v", err)
	}

	if cleaned != input {
		t.Fatalf("expected safe markup unchanged, got %q", cleaned)
	}
}

func TestSanitizeStripsComments(t *testing.T) {
	t.Parallel()

	input := `<p>keep</p><!-- drop me -->`
	cleaned, err := Sanitize(input)
	if err != nil {
		t.Fatalf("Sanitize returned error: %v", err)
	}

	if strings.Contains(cleaned, "drop me") {
		t.Fatalf("expected comment removed, got %q", cleaned)
	}
}

func TestSanitizeRejectsEmptyContent(t *testing.T) {
	t.Parallel()

	if _, err := Sanitize("   "); err == nil {
		t.Fatal("expected error for blank content")
	}

	if _, err := Sanitize("<script>only()</script>"); err == nil {
		t.Fatal("expected error when nothing survives sanitizing")
	}
}

func TestInternalLinks(t *testing.T) {
	t.Parallel()

	rendered := `<p><a href="/alpha">A</a> and <a href="/beta?ref=home">B</a> again <a href="/alpha">A</a>.</p>` +
		`<p><a href="/shop/deep-path">deep</a> <a href="https://elsewhere.example/x">ext</a> ` +
		`<a href="/Not_A_Slug">bad</a> <a href="/gamma#section">C</a></p>`

	links := InternalLinks(rendered)

	expected := []string{"alpha", "beta", "gamma"}
	if len(links) != len(expected) {
		t.Fatalf("expected %d links, got %d (%v)", len(expected), len(links), links)
	}
	for idx, want := range expected {
		if links[idx] != want {
			t.Fatalf("expected link %q at index %d, got %q", want, idx, links[idx])
		}
	}
}

func TestInternalLinksEmptyWhenNoneMatch(t *testing.T) {
	t.Parallel()

	links := InternalLinks(`<p>plain text, <a href="/">root</a> only</p>`)
	if links == nil || len(links) != 0 {
		t.Fatalf("expected empty slice, got %v", links)
	}
}
