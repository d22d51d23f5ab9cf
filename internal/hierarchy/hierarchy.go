// Package hierarchy mirrors local category paths as remote container pages.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gerunddev/wikibridge/internal/document"
	"github.com/gerunddev/wikibridge/internal/wiki"
)

// containerBody is the placeholder content given to pages that exist only to
// group their children.
const containerBody = "<p>This page groups the documents of one section.</p>"

// Reconciler ensures a remote container page exists for every distinct
// category path before any document in that category is pushed. Resolved
// parent ids are memoized per full prefix; the cache is scoped to one sync
// run, since remote truth is authoritative for this mapping.
type Reconciler struct {
	remote wiki.Remote
	rootID string

	mu   sync.Mutex
	memo map[string]string
}

// New creates a run-scoped reconciler rooted at rootID.
func New(remote wiki.Remote, rootID string) *Reconciler {
	return &Reconciler{
		remote: remote,
		rootID: rootID,
		memo:   make(map[string]string),
	}
}

// Ensure resolves the remote parent page id for a category path, creating
// missing container pages level by level. An empty category resolves to the
// sync root.
func (r *Reconciler) Ensure(ctx context.Context, category string) (string, error) {
	category = strings.Trim(category, "/")
	if category == "" {
		return r.rootID, nil
	}

	parentID := r.rootID
	prefix := ""
	for _, segment := range strings.Split(category, "/") {
		if prefix == "" {
			prefix = segment
		} else {
			prefix = prefix + "/" + segment
		}

		id, err := r.ensureSegment(ctx, prefix, segment, parentID)
		if err != nil {
			return "", fmt.Errorf("failed to reconcile category %q: %w", prefix, err)
		}
		parentID = id
	}
	return parentID, nil
}

// ensureSegment resolves one category segment under parentID, memoized by
// full prefix. Two locally-distinct segments that format to the same title
// under the same parent collapse into one container page, first writer wins.
func (r *Reconciler) ensureSegment(ctx context.Context, prefix, segment, parentID string) (string, error) {
	r.mu.Lock()
	if id, ok := r.memo[prefix]; ok {
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	title := document.HumanizeSegment(segment)

	page, err := r.remote.FindPageByTitle(ctx, title, parentID)
	if err != nil && !errors.Is(err, wiki.ErrNotFound) {
		return "", &wiki.ReadError{Op: "findPageByTitle", Ref: title, Err: err}
	}
	if page == nil {
		page, err = r.remote.CreatePage(ctx, title, containerBody, parentID)
		if err != nil {
			return "", &wiki.WriteError{Op: "createPage", Ref: title, Err: err}
		}
	}

	r.mu.Lock()
	// A concurrent caller may have resolved the same prefix meanwhile; keep
	// the first writer.
	if id, ok := r.memo[prefix]; ok {
		r.mu.Unlock()
		return id, nil
	}
	r.memo[prefix] = page.ID
	r.mu.Unlock()
	return page.ID, nil
}

// Resolved returns the memoized page id for a category prefix, if this run
// already ensured it.
func (r *Reconciler) Resolved(prefix string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.memo[prefix]
	return id, ok
}
