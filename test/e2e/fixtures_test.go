package e2e

import (
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/loader"
)

func TestWriteAttachment_AllExtensionsLoadable(t *testing.T) {
	l := loader.New()
	sample := "E2E retrievable attachment content"
	for _, ext := range AttachmentExtensions {
		t.Run(ext, func(t *testing.T) {
			content, err := WriteAttachment(ext, sample)
			if err != nil {
				t.Fatalf("WriteAttachment: %v", err)
			}
			if len(content) == 0 {
				t.Fatal("empty content")
			}
			doc, err := l.LoadBytes(content, "attachment"+ext)
			if err != nil {
				t.Fatalf("LoadBytes: %v", err)
			}
			if !strings.Contains(doc.Text, sample) {
				t.Errorf("loaded text %q does not contain %q", doc.Text, sample)
			}
		})
	}
}
