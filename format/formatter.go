package format

import (
	"bytes"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"pdfchat/types"
)

// markdownRe detects content that is likely markdown: emphasis, code,
// headings, blockquotes, links, bullet and numbered lists.
var markdownRe = regexp.MustCompile("(?:\\*\\*|__|\\*|_|`|#{1,6}\\s|>\\s|\\[.*\\]\\(.*\\)|\\n\\s*[-*+]\\s|\\n\\s*\\d+\\.\\s)")

type Result struct {
	Formatted   string
	ContentType types.ContentType
}

// Formatter renders lightweight markup into sanitized HTML for display.
type Formatter struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() *Formatter {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	policy := bluemonday.NewPolicy()
	policy.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "strong", "b", "em", "i", "u",
		"ul", "ol", "li",
		"blockquote",
		"code", "pre",
		"a",
		"table", "thead", "tbody", "tr", "th", "td",
		"div", "span",
		"hr",
	)
	policy.AllowAttrs("href", "target", "rel", "title").OnElements("a")
	policy.AllowAttrs("class", "id").Globally()
	policy.AllowAttrs("start").OnElements("ol")
	policy.AllowURLSchemes("http", "https", "mailto", "tel")

	return &Formatter{
		md:     md,
		policy: policy,
	}
}

// Format converts raw message text into its display form. Assistant output
// and markdown-looking user text are rendered to sanitized HTML; anything
// else, and any render failure, passes through as plain text.
func (f *Formatter) Format(text string, role types.Role) Result {
	if role != types.RoleAssistant && !markdownRe.MatchString(text) {
		return Result{Formatted: text, ContentType: types.ContentText}
	}

	var buf bytes.Buffer
	if err := f.md.Convert([]byte(text), &buf); err != nil {
		return Result{Formatted: text, ContentType: types.ContentText}
	}

	return Result{
		Formatted:   f.policy.Sanitize(buf.String()),
		ContentType: types.ContentHTML,
	}
}
