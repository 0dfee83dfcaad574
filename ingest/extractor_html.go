package ingest

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

var _ Extractor = (*HTMLExtractor)(nil)

// HTMLExtractor extracts readable article text from HTML documents,
// discarding navigation, ads, and boilerplate.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTML extractor.
func NewHTMLExtractor() *HTMLExtractor { return &HTMLExtractor{} }

func (e *HTMLExtractor) Extract(content []byte) (string, error) {
	// Readability wants a page URL to resolve relative links; local files
	// get a placeholder.
	pageURL := &url.URL{Scheme: "file", Path: "/"}
	article, err := readability.FromReader(bytes.NewReader(content), pageURL)
	if err != nil {
		return "", fmt.Errorf("extract html: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}
