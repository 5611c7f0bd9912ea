// Package sanitize turns post markdown into plain text or safe HTML.
package sanitize

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var (
	blockBreaks = regexp.MustCompile(`<br\s*/?>|</?p>|</?div>|</?pre>|</?h[1-6]>|</?li>`)
	blankLines  = regexp.MustCompile(`\n\s*\n+`)

	strict = bluemonday.StrictPolicy()
)

// Policy converts markdown with one bluemonday policy.
type Policy struct {
	policy   *bluemonday.Policy
	markdown goldmark.Markdown
}

// NewPlainTextPolicy strips all markup, for services that take plain text.
func NewPlainTextPolicy() *Policy {
	return &Policy{
		policy:   strict,
		markdown: goldmark.New(),
	}
}

// NewFeedPolicy keeps the formatting a feed reader can show.
func NewFeedPolicy() *Policy {
	return &Policy{
		policy: bluemonday.UGCPolicy(),
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify),
			goldmark.WithRendererOptions(htmlrenderer.WithHardWraps(), htmlrenderer.WithXHTML()),
		),
	}
}

// SanitizeText strips HTML and markdown from the input text.
func (p *Policy) SanitizeText(text string) string {
	if text == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(text), &buf); err != nil {
		return text
	}

	htmlText := blockBreaks.ReplaceAllString(buf.String(), "\n")
	sanitized := strict.Sanitize(htmlText)
	sanitized = blankLines.ReplaceAllString(sanitized, "\n\n")
	return strings.TrimSpace(html.UnescapeString(sanitized))
}

// RenderHTML converts markdown into HTML allowed by the policy.
func (p *Policy) RenderHTML(text string) string {
	if text == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(text), &buf); err != nil {
		return p.policy.Sanitize(html.EscapeString(text))
	}
	return strings.TrimSpace(p.policy.Sanitize(buf.String()))
}
