package media

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gerunddev/wikibridge/internal/wiki"
)

// Materializer downloads a page's attachments into an images/ folder beside
// the target Markdown file and maps attachment filenames to the relative
// paths the rebuilt document should link. It is scoped to one page.
type Materializer struct {
	ctx    context.Context
	remote wiki.Remote
	pageID string
	// targetDir is the directory of the Markdown file being written.
	targetDir string
	// byName indexes the page's attachment metadata.
	byName map[string]wiki.Attachment
}

// NewMaterializer builds a materializer for one page's attachment set.
func NewMaterializer(ctx context.Context, remote wiki.Remote, pageID, targetDir string, attachments []wiki.Attachment) *Materializer {
	byName := make(map[string]wiki.Attachment, len(attachments))
	for _, att := range attachments {
		byName[att.Filename] = att
	}
	return &Materializer{
		ctx:       ctx,
		remote:    remote,
		pageID:    pageID,
		targetDir: targetDir,
		byName:    byName,
	}
}

// Resolve implements convert.AttachmentResolver. Download is skipped when a
// same-named local file is newer than the attachment's recorded version
// timestamp; staleness within the sync interval is acceptable. A failed
// download falls back to the original remote URL.
func (m *Materializer) Resolve(filename string) (string, string) {
	relative := filepath.ToSlash(filepath.Join("images", filename))
	att, ok := m.byName[filename]
	if !ok {
		return relative, "attachment " + filename + " not listed on page, link kept"
	}

	local := filepath.Join(m.targetDir, "images", filename)
	if info, err := os.Stat(local); err == nil && info.ModTime().After(att.When) {
		return relative, ""
	}

	data, err := m.remote.DownloadAttachment(m.ctx, wiki.AttachmentRef{
		PageID:       m.pageID,
		AttachmentID: att.ID,
		Filename:     filename,
		DownloadURL:  att.DownloadURL,
	})
	if err != nil {
		if att.DownloadURL != "" {
			return att.DownloadURL, "failed to download " + filename + ", linking remote URL"
		}
		return relative, "failed to download " + filename
	}

	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return relative, "failed to create images directory: " + err.Error()
	}
	if err := os.WriteFile(local, data, 0644); err != nil {
		return relative, "failed to write " + filename + ": " + err.Error()
	}
	return relative, ""
}
