package loader

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperjump/kotae/internal/models"
)

// mainContentSelector matches the page body of a Confluence HTML export.
const mainContentSelector = "#main-content.wiki-content.group"

var invisibleElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

// Clean extracts the title and visible text of one exported wiki page.
// The title falls back to the base filename; the body prefers the Confluence
// main-content block and otherwise uses every visible text node of <body>.
func Clean(raw []byte, filename string) (*models.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &LoadError{Filename: filename, Err: fmt.Errorf("parse html: %w", err)}
	}
	base := filepath.Base(filename)

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = base
	}

	body := doc.Find(mainContentSelector).First()
	if body.Length() == 0 {
		body = doc.Find("body").First()
	}
	if body.Length() == 0 {
		body = doc.Selection
	}

	return &models.Document{
		Title:      title,
		Text:       visibleText(body),
		SourceFile: base,
		Path:       filename,
	}, nil
}

// visibleText trims every text node under sel and joins the non-empty ones with one space.
func visibleText(sel *goquery.Selection) string {
	var parts []string
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch name := goquery.NodeName(c); {
			case name == "#text":
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
			case name == "#comment", invisibleElements[name]:
			default:
				walk(c)
			}
		})
	}
	walk(sel)
	return strings.TrimSpace(strings.Join(parts, " "))
}
