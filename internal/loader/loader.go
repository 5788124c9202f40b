// Package loader turns corpus files into cleaned documents.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Loader reads corpus files and dispatches them to a cleaner by extension.
type Loader struct {
	logger *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger for per-file diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) {
		ld.logger = l
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = utils.LoggerOrNop(l.logger)
	return l
}

// LoadFile reads path and returns its cleaned document. Every failure is a *LoadError.
func (l *Loader) LoadFile(path string) (*models.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Filename: path, Err: err}
	}
	doc, err := l.LoadBytes(raw, path)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("loaded document",
		zap.String("path", path),
		zap.String("title", doc.Title),
		zap.Int("chars", utils.RuneLen(doc.Text)))
	return doc, nil
}

// LoadBytes cleans raw content as if it were read from filename.
func (l *Loader) LoadBytes(raw []byte, filename string) (*models.Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".html", ".htm":
		return Clean(raw, filename)
	case ".md", ".markdown":
		return cleanMarkdown(raw, filename)
	}

	var text string
	var err error
	switch ext {
	case ".pdf":
		text, err = extractPDF(raw)
	case ".xlsx":
		text, err = extractSpreadsheet(raw)
	case ".docx":
		text, err = extractDOCX(raw)
	case ".odt", ".rtf":
		text, err = extractOffice(raw)
	case ".txt", "":
		text, err = extractPlain(raw)
	default:
		return nil, &LoadError{Filename: filename, Err: fmt.Errorf("unsupported extension %q", ext)}
	}
	if err != nil {
		return nil, &LoadError{Filename: filename, Err: err}
	}
	base := filepath.Base(filename)
	return &models.Document{
		Title:      base,
		Text:       strings.TrimSpace(utils.ValidUTF8(text)),
		SourceFile: base,
		Path:       filename,
	}, nil
}

// Discover lists the files under dir whose extension is in exts, recursively, in lexical path order.
// Extension matching is case-insensitive.
func Discover(dir string, exts []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus directory: %s is not a directory", dir)
	}
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if allowed[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
