package http

import (
	"bytes"
	_ "embed"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

//go:embed CHANGELOG.md
var changelogSource []byte

// changelog renders the embedded CHANGELOG.md once. Raw HTML in the source
// is dropped by goldmark's default renderer.
type changelog struct {
	source []byte
	once   sync.Once
	html   string
	err    error
}

func newChangelog() *changelog {
	return &changelog{source: changelogSource}
}

func (c *changelog) HTML() (string, error) {
	c.once.Do(func() {
		md := goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		)
		var buf bytes.Buffer
		if err := md.Convert(c.source, &buf); err != nil {
			c.err = err
			return
		}
		c.html = buf.String()
	})
	return c.html, c.err
}
