// Package docs serves the embedded workflow guides as Markdown or HTML.
package docs

import (
	"bytes"
	"embed"
	"sort"
	"strings"
	"sync"

	contextutils "bugtracker/internal/utils"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

//go:embed guides/*.md
var guides embed.FS

// Output formats
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Guide names
const (
	BugReport   = "bug-report"
	AIResolver  = "ai-resolver"
	APIRef      = "api"
	guideSuffix = ".md"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

func renderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		)
	})
	return markdown
}

// Names lists the available guides
func Names() []string {
	entries, err := guides.ReadDir("guides")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), guideSuffix))
	}
	sort.Strings(names)
	return names
}

// Markdown returns the raw guide
func Markdown(name string) (string, error) {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), guideSuffix)
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return "", contextutils.Detailf(contextutils.ErrRecordNotFound, "no guide named %q", name)
	}
	data, err := guides.ReadFile("guides/" + name + guideSuffix)
	if err != nil {
		return "", contextutils.Detailf(contextutils.ErrRecordNotFound, "no guide named %q; available: %s", name, strings.Join(Names(), ", "))
	}
	return string(data), nil
}

// HTML renders the guide to an HTML fragment
func HTML(name string) (string, error) {
	source, err := Markdown(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := renderer().Convert([]byte(source), &buf); err != nil {
		return "", contextutils.WrapError(err, "failed to render guide")
	}
	return buf.String(), nil
}

// Render returns the guide in format, which is markdown (the default) or html
func Render(name, format string) (content, contentType string, err error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatMarkdown, "md":
		content, err = Markdown(name)
		return content, "text/markdown; charset=utf-8", err
	case FormatHTML:
		content, err = HTML(name)
		return content, "text/html; charset=utf-8", err
	default:
		return "", "", contextutils.Detailf(contextutils.ErrInvalidInput, "format must be %s or %s", FormatMarkdown, FormatHTML)
	}
}
