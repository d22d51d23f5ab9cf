package wiki

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Page is a remote wiki page as returned by the content backend.
type Page struct {
	ID          string
	Title       string
	ParentID    string
	Version     int
	Storage     string
	Attachments []Attachment
}

// Attachment describes a file attached to a page.
type Attachment struct {
	ID       string
	Filename string
	Version  int
	// When records the attachment version timestamp, used by the pull-side
	// freshness check.
	When        time.Time
	DownloadURL string
}

// AttachmentRef identifies an attachment for download.
type AttachmentRef struct {
	PageID       string
	AttachmentID string
	Filename     string
	DownloadURL  string
}

// ErrNotFound is returned by read operations when the requested page or
// attachment does not exist.
var ErrNotFound = errors.New("wiki: not found")

// Remote is the narrow contract the sync engine relies on. Authentication and
// HTTP plumbing live behind implementations of this interface.
type Remote interface {
	// FindPageByTitle looks up a page by exact title. An empty parentID
	// searches space-wide; otherwise the lookup is scoped to direct children
	// of parentID. Returns ErrNotFound when no page matches.
	FindPageByTitle(ctx context.Context, title, parentID string) (*Page, error)

	// CreatePage creates a page under parentID and returns it with its id
	// and initial version populated.
	CreatePage(ctx context.Context, title, storage, parentID string) (*Page, error)

	// UpdatePage rewrites a page's content. newVersion must be exactly one
	// greater than the page's current version.
	UpdatePage(ctx context.Context, id, title, storage string, newVersion int) (*Page, error)

	// GetPage fetches a page. expand selects which optional fields to
	// populate ("body", "version", "attachments").
	GetPage(ctx context.Context, id string, expand []string) (*Page, error)

	// GetChildren lists the direct child pages of parentID.
	GetChildren(ctx context.Context, parentID string) ([]*Page, error)

	// DownloadAttachment fetches attachment bytes.
	DownloadAttachment(ctx context.Context, ref AttachmentRef) ([]byte, error)
}

// Renderer turns diagram source into image bytes. Rendering binaries or
// services are external; the engine only sees this contract.
type Renderer interface {
	Render(ctx context.Context, source, language, format string) ([]byte, error)
}

// Uploader attaches media to a remote page.
type Uploader interface {
	Upload(ctx context.Context, pageID, filename string, data []byte) (AttachmentRef, error)
}

// ReadError wraps a failed remote read. Callers treat it as "assume absent or
// unchanged" and fall back to a safe default.
type ReadError struct {
	Op  string
	Ref string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("wiki read %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError wraps a failed remote mutation. It aborts only the affected
// document and is never retried automatically.
type WriteError struct {
	Op  string
	Ref string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("wiki write %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
