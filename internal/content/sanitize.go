// Package content cleans rich-text HTML before it is persisted and extracts
// the internal page links used for publish-time validation.
package content

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"pagesmith/app/internal/slug"
)

// pageLinkPattern matches single-segment root-relative hrefs in rendered HTML.
// Query strings and fragments are dropped so "/sale?utm=x" resolves to "sale".
var pageLinkPattern = regexp.MustCompile(`href="/([^"#?/]+)(?:[?#][^"]*)?"`)

// droppedElements are removed entirely, children included.
var droppedElements = map[string]struct{}{
	"script": {},
	"style":  {},
	"iframe": {},
	"object": {},
	"embed":  {},
}

// Sanitize parses a rich-text HTML fragment and renders it back without
// doctype, comments, head content, active elements, inline event handlers, or
// javascript: URLs. The html/body wrappers the parser introduces are unwrapped
// so the stored value stays a fragment.
func Sanitize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", eris.New("html content is empty")
	}

	doc, err := html.Parse(strings.NewReader(trimmed))
	if err != nil {
		return "", eris.Wrap(err, "parsing html content")
	}

	root := &html.Node{Type: html.ElementNode, Data: "div"}
	appendSanitizedChildren(root, doc)

	if root.FirstChild == nil {
		return "", eris.New("html content empty after sanitizing")
	}

	var builder strings.Builder
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&builder, child); err != nil {
			return "", eris.Wrap(err, "rendering sanitized html")
		}
	}

	return builder.String(), nil
}

// InternalLinks returns the deduplicated slugs of root-relative links in
// document order. Hrefs with deeper paths belong to the frontend's own routes
// and are ignored, as is anything that is not shaped like a slug.
func InternalLinks(rendered string) []string {
	matches := pageLinkPattern.FindAllStringSubmatch(rendered, -1)
	if len(matches) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(matches))
	links := make([]string, 0, len(matches))

	for _, match := range matches {
		if len(match) < 2 {
			continue
		}

		target := strings.TrimSpace(match[1])
		if target == "" || !slug.IsCanonical(target) {
			continue
		}

		if _, exists := seen[target]; exists {
			continue
		}
		seen[target] = struct{}{}
		links = append(links, target)
	}

	return links
}

func appendSanitizedChildren(dst, src *html.Node) {
	if src == nil {
		return
	}

	skipWhitespace := src.Type == html.DocumentNode || (src.Type == html.ElementNode && (strings.EqualFold(src.Data, "html") || strings.EqualFold(src.Data, "body")))

	for child := src.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			if skipWhitespace && isWhitespaceTextNode(child) {
				continue
			}
			dst.AppendChild(&html.Node{Type: html.TextNode, Data: child.Data})
		case html.ElementNode:
			name := strings.ToLower(child.Data)
			if _, dropped := droppedElements[name]; dropped {
				continue
			}
			switch name {
			case "head":
				continue
			case "html", "body":
				appendSanitizedChildren(dst, child)
				continue
			}

			replacement := &html.Node{Type: html.ElementNode, Data: child.Data, Attr: sanitizeAttributes(child.Attr)}
			appendSanitizedChildren(replacement, child)
			dst.AppendChild(replacement)
		case html.CommentNode, html.DoctypeNode:
			continue
		default:
			appendSanitizedChildren(dst, child)
		}
	}
}

func sanitizeAttributes(attrs []html.Attribute) []html.Attribute {
	if len(attrs) == 0 {
		return nil
	}

	kept := make([]html.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(attr.Key)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if (key == "href" || key == "src") && isScriptURL(attr.Val) {
			continue
		}
		kept = append(kept, attr)
	}

	if len(kept) == 0 {
		return nil
	}
	return kept
}

func isScriptURL(value string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(value)), "javascript:")
}

func isWhitespaceTextNode(node *html.Node) bool {
	if node == nil || node.Type != html.TextNode {
		return false
	}

	return strings.TrimSpace(node.Data) == ""
}
