package loader

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hyperjump/kotae/internal/models"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// cleanMarkdown renders a markdown page to HTML and extracts its text.
// The first heading becomes the title; otherwise the base filename.
func cleanMarkdown(raw []byte, filename string) (*models.Document, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(raw, &buf); err != nil {
		return nil, &LoadError{Filename: filename, Err: fmt.Errorf("render markdown: %w", err)}
	}
	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		return nil, &LoadError{Filename: filename, Err: fmt.Errorf("parse rendered markdown: %w", err)}
	}
	base := filepath.Base(filename)
	title := strings.TrimSpace(doc.Find("h1, h2, h3, h4, h5, h6").First().Text())
	if title == "" {
		title = base
	}
	return &models.Document{
		Title:      title,
		Text:       visibleText(doc.Selection),
		SourceFile: base,
		Path:       filename,
	}, nil
}
