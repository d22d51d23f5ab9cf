// Package sync orchestrates incremental push and pull runs between the local
// Markdown tree and the remote wiki.
package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gerunddev/wikibridge/internal/config"
	"github.com/gerunddev/wikibridge/internal/convert"
	"github.com/gerunddev/wikibridge/internal/diff"
	"github.com/gerunddev/wikibridge/internal/document"
	"github.com/gerunddev/wikibridge/internal/hierarchy"
	"github.com/gerunddev/wikibridge/internal/logger"
	"github.com/gerunddev/wikibridge/internal/media"
	"github.com/gerunddev/wikibridge/internal/refindex"
	"github.com/gerunddev/wikibridge/internal/state"
	"github.com/gerunddev/wikibridge/internal/wiki"
)

// Mode selects the sync direction.
type Mode string

const (
	ModePush Mode = "push"
	ModePull Mode = "pull"
)

// Result summarizes one sync run. It is always populated, even on partial
// failure.
type Result struct {
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Failed    int

	// Orphans are ledger paths whose local document disappeared.
	Orphans []string
	// Warnings collects degrade-and-continue messages from all documents.
	Warnings []string
	// Previews holds rendered dry-run diffs per path (pull mode only).
	Previews map[string]string

	StartTime time.Time
	EndTime   time.Time
}

// String returns a human-readable summary of the sync result
func (r *Result) String() string {
	duration := r.EndTime.Sub(r.StartTime)
	return fmt.Sprintf(
		"Sync complete: %d processed, %d created, %d updated, %d skipped, %d failed (took %v)",
		r.Processed, r.Created, r.Updated, r.Skipped, r.Failed,
		duration.Round(time.Millisecond),
	)
}

// Syncer drives one logical sync run. All run-scoped caches (hierarchy memo,
// reference index) live on the run, not the Syncer, so runs stay composable.
type Syncer struct {
	cfg      *config.Config
	store    *state.Store
	remote   wiki.Remote
	renderer wiki.Renderer
	uploader wiki.Uploader
	log      *logger.Logger
}

// NewSyncer creates a new syncer instance
func NewSyncer(cfg *config.Config, st *state.Store, remote wiki.Remote, renderer wiki.Renderer, uploader wiki.Uploader, log *logger.Logger) *Syncer {
	if log == nil {
		log = logger.Discard()
	}
	return &Syncer{
		cfg:      cfg,
		store:    st,
		remote:   remote,
		renderer: renderer,
		uploader: uploader,
		log:      log,
	}
}

// counters guards the shared result while pool workers run.
type counters struct {
	mu stdsync.Mutex
}

func (c *counters) update(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
}

// Run synchronizes the given documents in the requested direction. Per-
// document failures are counted, not propagated; only run-level failures
// (context cancellation, hierarchy reconciliation) return an error alongside
// the partial result.
func (s *Syncer) Run(ctx context.Context, docs []*document.Document, mode Mode, dryRun bool) (*Result, error) {
	res := &Result{StartTime: time.Now(), Previews: map[string]string{}}
	runID := uuid.NewString()

	s.log.SyncStarted(runID, string(mode), s.cfg.DocsDir, len(docs))

	var err error
	switch mode {
	case ModePush:
		err = s.push(ctx, docs, dryRun, res)
	case ModePull:
		err = s.pull(ctx, docs, dryRun, res)
	default:
		err = fmt.Errorf("unknown sync mode %q", mode)
	}

	res.EndTime = time.Now()
	s.log.SyncCompleted(runID, res.Processed, res.Failed, res.EndTime.Sub(res.StartTime))
	return res, err
}

// push mirrors the local tree onto the wiki: containers first, then the
// documents, bounded by the configured worker pool.
func (s *Syncer) push(ctx context.Context, docs []*document.Document, dryRun bool, res *Result) error {
	reconciler := hierarchy.New(s.remote, s.cfg.RootPageID)

	// Every container page must exist and be memoized before any document
	// in its category is pushed.
	parents := map[string]string{"": s.cfg.RootPageID}
	for _, category := range distinctCategories(docs) {
		if dryRun {
			parents[category] = s.cfg.RootPageID
			continue
		}
		id, err := reconciler.Ensure(ctx, category)
		if err != nil {
			return err
		}
		s.log.ContainerResolved(category, id)
		parents[category] = id
	}

	index := refindex.Build(s.store, s.cfg.DocRootPrefixes)
	s.indexContainers(index, reconciler, docs)
	forward := &convert.Forward{
		Index:            index,
		BaseURL:          s.cfg.BaseURL,
		SpaceKey:         s.cfg.SpaceKey,
		DiagramLanguages: s.cfg.DiagramLanguages,
	}
	pipeline := &media.Pipeline{
		Renderer: s.renderer,
		Uploader: s.uploader,
		DocsDir:  s.cfg.DocsDir,
		Format:   s.cfg.DiagramFormat,
	}

	var shared counters
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Concurrency)

	for _, doc := range docs {
		doc := doc
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			s.pushDocument(groupCtx, doc, parents[doc.Category], forward, pipeline, dryRun, res, &shared)
			return nil
		})
	}
	err := group.Wait()

	s.reportOrphans(ctx, docs, dryRun, res)
	return err
}

// pushDocument runs the full per-document pipeline: transform, create or
// update, upload media, patch, record. A failure aborts only this document.
func (s *Syncer) pushDocument(ctx context.Context, doc *document.Document, parentID string, forward *convert.Forward, pipeline *media.Pipeline, dryRun bool, res *Result, shared *counters) {
	if !s.store.NeedsPush(doc.Path, doc.Fingerprint) {
		s.log.Skipped(doc.Path, "fingerprint unchanged")
		shared.update(func() { res.Skipped++ })
		return
	}

	transformed, err := forward.Transform(doc)
	if err != nil {
		s.log.DocumentFailed(doc.Path, err)
		shared.update(func() { res.Failed++ })
		return
	}
	for _, warning := range transformed.Warnings {
		s.log.TransformWarning(doc.Path, warning)
	}
	shared.update(func() {
		res.Warnings = append(res.Warnings, prefixWarnings(doc.Path, transformed.Warnings)...)
	})

	rec := s.store.Record(doc.Path)

	if dryRun {
		shared.update(func() {
			res.Processed++
			if rec == nil {
				res.Created++
			} else {
				res.Updated++
			}
		})
		return
	}

	page, created, err := s.writePage(ctx, doc, rec, parentID, transformed.StorageContent)
	if err != nil {
		s.log.DocumentFailed(doc.Path, err)
		shared.update(func() { res.Failed++ })
		return
	}

	version := page.Version
	if len(transformed.Media) > 0 {
		uploads := pipeline.Process(ctx, page.ID, doc.Path, transformed.Media)
		for _, up := range uploads {
			if up.Err != nil {
				s.log.TransformWarning(doc.Path, up.Err.Error())
				shared.update(func() {
					res.Warnings = append(res.Warnings, doc.Path+": "+up.Err.Error())
				})
			}
		}
		patched := media.Patch(transformed.StorageContent, uploads)
		if patched != transformed.StorageContent {
			updated, err := s.remote.UpdatePage(ctx, page.ID, doc.Title, patched, version+1)
			if err != nil {
				s.log.DocumentFailed(doc.Path, &wiki.WriteError{Op: "updatePage", Ref: page.ID, Err: err})
				shared.update(func() { res.Failed++ })
				return
			}
			version = updated.Version
		}
	}

	// The ledger is updated only once the document fully succeeded, so a
	// cancelled in-flight document leaves its record untouched.
	if ctx.Err() != nil {
		shared.update(func() { res.Failed++ })
		return
	}
	s.store.RecordPush(doc.Path, page.ID, doc.Title, version, parentID, doc.Category, doc.Fingerprint)
	s.log.PagePushed(doc.Path, page.ID, version, created)

	shared.update(func() {
		res.Processed++
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	})
}

// writePage creates the remote page or rewrites it at the next version.
// Mutating calls are never retried: a duplicate create or double version
// bump is worse than a reported failure.
func (s *Syncer) writePage(ctx context.Context, doc *document.Document, rec *state.Record, parentID, storage string) (*wiki.Page, bool, error) {
	pageID := ""
	if rec != nil {
		pageID = rec.RemotePageID
	}

	if pageID == "" {
		// Adopt a page created out-of-band under the same parent rather
		// than duplicating it.
		if existing, err := s.remote.FindPageByTitle(ctx, doc.Title, parentID); err == nil && existing != nil {
			pageID = existing.ID
		}
	}

	if pageID == "" {
		page, err := s.remote.CreatePage(ctx, doc.Title, storage, parentID)
		if err != nil {
			return nil, false, &wiki.WriteError{Op: "createPage", Ref: doc.Title, Err: err}
		}
		return page, true, nil
	}

	current, err := s.remote.GetPage(ctx, pageID, []string{"version"})
	if err != nil {
		if errors.Is(err, wiki.ErrNotFound) {
			// The ledger drifted: the remote page is gone. Recreate it.
			page, err := s.remote.CreatePage(ctx, doc.Title, storage, parentID)
			if err != nil {
				return nil, false, &wiki.WriteError{Op: "createPage", Ref: doc.Title, Err: err}
			}
			return page, true, nil
		}
		return nil, false, &wiki.ReadError{Op: "getPage", Ref: pageID, Err: err}
	}

	page, err := s.remote.UpdatePage(ctx, pageID, doc.Title, storage, current.Version+1)
	if err != nil {
		return nil, false, &wiki.WriteError{Op: "updatePage", Ref: pageID, Err: err}
	}
	return page, false, nil
}

// pull brings remote edits back to the local tree, preserving each file's
// original frontmatter verbatim.
func (s *Syncer) pull(ctx context.Context, docs []*document.Document, dryRun bool, res *Result) error {
	byPath := make(map[string]*document.Document, len(docs))
	for _, doc := range docs {
		byPath[doc.Path] = doc
	}

	var shared counters
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Concurrency)

	for _, path := range s.store.Paths() {
		doc, ok := byPath[path]
		if !ok {
			// No local file to pull into; the orphan report covers it.
			continue
		}
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			s.pullDocument(groupCtx, doc, dryRun, res, &shared)
			return nil
		})
	}
	err := group.Wait()

	s.reportOrphans(ctx, docs, dryRun, res)
	return err
}

func (s *Syncer) pullDocument(ctx context.Context, doc *document.Document, dryRun bool, res *Result, shared *counters) {
	rec := s.store.Record(doc.Path)
	if rec == nil || rec.RemotePageID == "" {
		shared.update(func() { res.Skipped++ })
		return
	}

	page, err := s.remote.GetPage(ctx, rec.RemotePageID, []string{"body", "version", "attachments"})
	if err != nil {
		// A failed read means "assume unchanged": skip, don't abort.
		s.log.Skipped(doc.Path, "remote read failed: "+err.Error())
		shared.update(func() {
			res.Skipped++
			res.Warnings = append(res.Warnings, doc.Path+": remote read failed, skipped")
		})
		return
	}

	if !s.store.NeedsPull(doc.Path, page.Version) {
		s.log.Skipped(doc.Path, "remote version unchanged")
		shared.update(func() { res.Skipped++ })
		return
	}

	targetDir := filepath.Join(s.cfg.DocsDir, filepath.Dir(filepath.FromSlash(doc.Path)))
	reverse := &convert.Reverse{}
	if !dryRun {
		reverse.Attachments = media.NewMaterializer(ctx, s.remote, page.ID, targetDir, page.Attachments)
	}

	transformed, err := reverse.Transform(page.Storage)
	if err != nil {
		s.log.DocumentFailed(doc.Path, err)
		shared.update(func() { res.Failed++ })
		return
	}
	for _, warning := range transformed.Warnings {
		s.log.TransformWarning(doc.Path, warning)
	}
	shared.update(func() {
		res.Warnings = append(res.Warnings, prefixWarnings(doc.Path, transformed.Warnings)...)
	})

	content := transformed.MarkdownContent
	if doc.RawFrontmatter != "" {
		content = doc.RawFrontmatter + "\n" + content
	}

	if dryRun {
		shared.update(func() {
			res.Processed++
			res.Updated++
			res.Previews[doc.Path] = diff.Unified(doc.Path, doc.RawContent, content)
		})
		return
	}

	target := filepath.Join(s.cfg.DocsDir, filepath.FromSlash(doc.Path))
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		s.log.DocumentFailed(doc.Path, err)
		shared.update(func() { res.Failed++ })
		return
	}

	if ctx.Err() != nil {
		shared.update(func() { res.Failed++ })
		return
	}
	s.store.RecordPull(doc.Path, page.Version, state.Fingerprint([]byte(content)))
	s.log.PagePulled(doc.Path, page.ID, page.Version)

	shared.update(func() {
		res.Processed++
		res.Updated++
	})
}

// reportOrphans flags ledger records with no matching local document and
// drops the record once the remote page is confirmed gone.
func (s *Syncer) reportOrphans(ctx context.Context, docs []*document.Document, dryRun bool, res *Result) {
	current := make(map[string]bool, len(docs))
	for _, doc := range docs {
		current[doc.Path] = true
	}

	for _, path := range s.store.FindOrphans(current) {
		rec := s.store.Record(path)
		res.Orphans = append(res.Orphans, path)
		if rec == nil {
			continue
		}
		s.log.OrphanFound(path, rec.RemotePageID)
		if dryRun || rec.RemotePageID == "" {
			continue
		}
		if _, err := s.remote.GetPage(ctx, rec.RemotePageID, nil); errors.Is(err, wiki.ErrNotFound) {
			// Local file and remote page are both gone; nothing is left to
			// reconcile for this record.
			s.store.Remove(path)
		}
	}
}

// indexContainers adds the container pages this run resolved to the reference
// index, so links to category paths resolve and fresh results override stale
// ledger entries.
func (s *Syncer) indexContainers(index *refindex.Index, reconciler *hierarchy.Reconciler, docs []*document.Document) {
	for _, category := range distinctCategories(docs) {
		prefix := ""
		for _, segment := range strings.Split(category, "/") {
			if prefix == "" {
				prefix = segment
			} else {
				prefix = prefix + "/" + segment
			}
			if id, ok := reconciler.Resolved(prefix); ok {
				index.Add(prefix, refindex.Target{
					PageID: id,
					Title:  document.HumanizeSegment(segment),
				})
			}
		}
	}
}

func distinctCategories(docs []*document.Document) []string {
	seen := map[string]bool{}
	for _, doc := range docs {
		if doc.Category != "" {
			seen[doc.Category] = true
		}
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	// Parents sort before children, so shallow containers resolve first.
	sort.Strings(categories)
	return categories
}

func prefixWarnings(path string, warnings []string) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, path+": "+w)
	}
	return out
}
