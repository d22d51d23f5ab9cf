// Package refindex resolves internal link tokens to remote page identities.
package refindex

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/gerunddev/wikibridge/internal/state"
)

// Target is a resolved mapping from an internal link token to a remote page.
type Target struct {
	PageID string
	Title  string
	Anchor string
}

// URL renders the canonical wiki URL for the target. The exact shape matters:
// the wiki rejects the older path-less form as a broken link.
func (t Target) URL(baseURL, spaceKey string) string {
	u := fmt.Sprintf("%s/wiki/spaces/%s/pages/%s/%s",
		strings.TrimRight(baseURL, "/"), spaceKey, t.PageID, url.PathEscape(t.Title))
	if t.Anchor != "" {
		u += "#" + t.Anchor
	}
	return u
}

// Index answers "what remote page does this internal link resolve to?",
// built from the persisted ledger plus any container pages resolved during
// the current run.
type Index struct {
	// byPath maps canonical repo-relative paths to targets.
	byPath map[string]Target
	// byStem is the fuzzy fallback keyed by lowercased filename stem with
	// numeric ordering prefixes stripped.
	byStem map[string]Target

	// RootPrefixes are documentation-root prefixes stripped from absolute
	// tokens, e.g. "docs".
	RootPrefixes []string
}

// Build constructs an index from the sync ledger.
func Build(store *state.Store, rootPrefixes []string) *Index {
	idx := &Index{
		byPath:       make(map[string]Target),
		byStem:       make(map[string]Target),
		RootPrefixes: rootPrefixes,
	}
	for _, p := range store.Paths() {
		rec := store.Record(p)
		if rec == nil || rec.RemotePageID == "" {
			continue
		}
		idx.Add(p, Target{PageID: rec.RemotePageID, Title: rec.Title})
	}
	return idx
}

// Add registers a path→target mapping. Later additions win, letting run-time
// results override stale ledger entries.
func (idx *Index) Add(docPath string, target Target) {
	docPath = path.Clean(strings.TrimPrefix(docPath, "/"))
	idx.byPath[docPath] = target
	idx.byStem[fuzzyStem(docPath)] = target
}

var orderingPrefix = regexp.MustCompile(`^\d+[-_.]`)

func fuzzyStem(docPath string) string {
	base := path.Base(docPath)
	base = strings.TrimSuffix(base, path.Ext(base))
	base = orderingPrefix.ReplaceAllString(base, "")
	return strings.ToLower(base)
}

// Resolve maps a link token, relative to the linking document, to a remote
// page target. The second return is false when the token does not name a
// known document; callers must then leave the original link unmodified.
//
// Accepted shapes: relative ("./x.md", "../y/z.md"), absolute-from-docroot
// ("/docs/x"), either with an optional "#anchor" suffix preserved verbatim.
func (idx *Index) Resolve(token, sourcePath string) (Target, bool) {
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, "://") || strings.HasPrefix(token, "mailto:") {
		return Target{}, false
	}

	anchor := ""
	if i := strings.Index(token, "#"); i >= 0 {
		anchor = token[i+1:]
		token = token[:i]
		if token == "" {
			// Pure fragment links stay within the page.
			return Target{}, false
		}
	}

	canonical := canonicalize(token, sourcePath, idx.RootPrefixes)

	for _, candidate := range []string{canonical, canonical + ".md"} {
		if target, ok := idx.byPath[candidate]; ok {
			target.Anchor = anchor
			return target, true
		}
	}

	if target, ok := idx.byStem[fuzzyStem(canonical)]; ok {
		target.Anchor = anchor
		return target, true
	}

	return Target{}, false
}

// canonicalize normalizes a token against the linking document's directory,
// producing a repo-relative path. Absolute tokens are taken from the doc root
// with known root prefixes stripped.
func canonicalize(token, sourcePath string, rootPrefixes []string) string {
	if strings.HasPrefix(token, "/") {
		canonical := path.Clean(strings.TrimPrefix(token, "/"))
		for _, prefix := range rootPrefixes {
			prefix = strings.Trim(prefix, "/")
			if prefix != "" && (canonical == prefix || strings.HasPrefix(canonical, prefix+"/")) {
				canonical = strings.TrimPrefix(strings.TrimPrefix(canonical, prefix), "/")
				break
			}
		}
		return canonical
	}
	return path.Clean(path.Join(path.Dir(sourcePath), token))
}
