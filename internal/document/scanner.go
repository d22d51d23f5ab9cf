package document

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/goliatone/go-slug"

	"github.com/gerunddev/wikibridge/internal/state"
)

// Scanner walks a documentation tree and yields Documents for every Markdown
// file found.
type Scanner struct {
	// Root is the documentation directory to walk.
	Root string

	// ExcludePatterns are path.Match globs applied to repo-relative paths.
	ExcludePatterns []string

	// DiagramLanguages drive embedded-media detection.
	DiagramLanguages []string
}

// Scan walks Root and returns all Markdown documents, sorted by path so one
// run always processes documents in a deterministic order.
func (s *Scanner) Scan() ([]*Document, error) {
	var docs []*Document

	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != s.Root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), ".md") {
			return nil
		}

		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if s.excluded(rel) {
			return nil
		}

		doc, err := s.read(p, rel)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.ExcludePatterns {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, path.Base(rel)); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) read(absPath, rel string) (*Document, error) {
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{}
	body, err := frontmatter.Parse(bytes.NewReader(raw), &meta)
	if err != nil {
		// Malformed frontmatter degrades to treating the whole file as body.
		meta = map[string]any{}
		body = raw
	}

	doc := &Document{
		Path:           rel,
		Frontmatter:    meta,
		RawFrontmatter: rawFrontmatterBlock(string(raw)),
		Body:           string(body),
		RawContent:     string(raw),
		Category:       categoryOf(rel),
		Fingerprint:    state.Fingerprint(raw),
		LastModified:   info.ModTime(),
	}
	doc.Title = titleOf(doc)
	doc.Slug = slugOf(doc)
	doc.HasEmbeddedMedia = DetectEmbeddedMedia(doc.Body, s.DiagramLanguages)
	return doc, nil
}

// categoryOf derives the slash-delimited category from the folder portion of
// a repo-relative path. Root-level documents have an empty category.
func categoryOf(rel string) string {
	dir := path.Dir(rel)
	if dir == "." {
		return ""
	}
	return dir
}

// titleOf picks the document title: frontmatter title, then the first
// level-one heading, then the humanized filename.
func titleOf(doc *Document) string {
	if t, ok := doc.Frontmatter["title"].(string); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	for _, line := range strings.Split(doc.Body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return HumanizeSegment(Stem(doc.Path))
}

func slugOf(doc *Document) string {
	if s, ok := doc.Frontmatter["slug"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	normalized, err := slug.Normalize(Stem(doc.Path))
	if err != nil || normalized == "" {
		return Stem(doc.Path)
	}
	return normalized
}

// Stem returns the filename without directory or extension.
func Stem(rel string) string {
	base := path.Base(rel)
	return strings.TrimSuffix(base, path.Ext(base))
}

// HumanizeSegment formats a path segment as a page title: hyphens and
// underscores become spaces, words are title-cased.
func HumanizeSegment(segment string) string {
	segment = strings.NewReplacer("-", " ", "_", " ").Replace(segment)
	words := strings.Fields(segment)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// rawFrontmatterBlock extracts the original frontmatter block including its
// delimiters, or "" when the file has none.
func rawFrontmatterBlock(content string) string {
	if !strings.HasPrefix(content, "---") {
		return ""
	}
	lines := strings.SplitAfter(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return ""
	}
	var b strings.Builder
	b.WriteString(lines[0])
	for _, line := range lines[1:] {
		b.WriteString(line)
		if strings.TrimSpace(line) == "---" {
			return b.String()
		}
	}
	return ""
}
