// Package media handles the out-of-band half of page content: rendering and
// uploading diagrams and images on push, materializing attachments on pull.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gerunddev/wikibridge/internal/convert"
	"github.com/gerunddev/wikibridge/internal/wiki"
)

// Upload is the outcome for one extracted media entry.
type Upload struct {
	Media convert.Media
	// Filename is the attachment filename on the remote page, empty when
	// the entry failed.
	Filename string
	// Err is the render or upload failure, if any. A failed diagram falls
	// back to its literal code fence; the document still pushes.
	Err error
}

// Pipeline renders and uploads a document's extracted media.
type Pipeline struct {
	Renderer wiki.Renderer
	Uploader wiki.Uploader
	// DocsDir resolves local image source tokens.
	DocsDir string
	// Format is the image format diagrams are rendered to.
	Format string
}

// Process handles every extracted media entry for one page. Failures are
// reported per entry, never as a pipeline error, so the caller can patch the
// page with whatever did upload.
func (p *Pipeline) Process(ctx context.Context, pageID, docPath string, items []convert.Media) []Upload {
	uploads := make([]Upload, 0, len(items))
	for _, item := range items {
		uploads = append(uploads, p.processOne(ctx, pageID, docPath, item))
	}
	return uploads
}

func (p *Pipeline) processOne(ctx context.Context, pageID, docPath string, item convert.Media) Upload {
	out := Upload{Media: item}

	switch item.Kind {
	case convert.MediaDiagram:
		format := p.Format
		if format == "" {
			format = "png"
		}
		data, err := p.Renderer.Render(ctx, item.SourceToken, item.Language, format)
		if err != nil {
			out.Err = fmt.Errorf("failed to render %s diagram: %w", item.Language, err)
			return out
		}
		filename := fmt.Sprintf("diagram-%s.%s", item.PlaceholderID, format)
		if _, err := p.Uploader.Upload(ctx, pageID, filename, data); err != nil {
			out.Err = &wiki.WriteError{Op: "upload", Ref: filename, Err: err}
			return out
		}
		out.Filename = filename

	case convert.MediaImage:
		local := filepath.Join(p.DocsDir, filepath.Dir(filepath.FromSlash(docPath)), filepath.FromSlash(item.SourceToken))
		data, err := os.ReadFile(local)
		if err != nil {
			out.Err = fmt.Errorf("failed to read image %s: %w", item.SourceToken, err)
			return out
		}
		filename := filepath.Base(filepath.FromSlash(item.SourceToken))
		if _, err := p.Uploader.Upload(ctx, pageID, filename, data); err != nil {
			out.Err = &wiki.WriteError{Op: "upload", Ref: filename, Err: err}
			return out
		}
		out.Filename = filename

	default:
		out.Err = fmt.Errorf("unknown media kind %q", item.Kind)
	}
	return out
}

// Patch applies upload outcomes to a page's storage content: successful
// uploads slot in the attachment image macro, failed diagrams fall back to
// their literal code fence.
func Patch(storage string, uploads []Upload) string {
	for _, up := range uploads {
		if up.Media.PlaceholderID == "" {
			continue
		}
		if up.Err != nil || up.Filename == "" {
			storage = convert.ReplaceMediaFallback(storage, up.Media.PlaceholderID, up.Media.SourceToken, up.Media.Language)
			continue
		}
		storage = convert.ReplaceMediaPlaceholder(storage, up.Media.PlaceholderID, up.Filename)
	}
	return storage
}
