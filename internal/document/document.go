package document

import (
	"regexp"
	"strings"
	"time"
)

// Document is a single local content unit, constructed by the scanner on
// every sync invocation and immutable for the duration of one sync pass.
type Document struct {
	// Path is the repo-relative, POSIX-normalized file path.
	Path string

	Title string
	Slug  string

	// Frontmatter holds the parsed metadata mapping. RawFrontmatter keeps
	// the original delimited block byte-for-byte so pull-mode rewrites can
	// preserve it verbatim.
	Frontmatter    map[string]any
	RawFrontmatter string

	// Body is the Markdown content with frontmatter stripped. RawContent is
	// the full file as read.
	Body       string
	RawContent string

	// Category is the slash-delimited folder path the document lives under,
	// empty for root-level documents.
	Category string

	// Fingerprint is the change-detection value for RawContent.
	Fingerprint string

	HasEmbeddedMedia bool
	LastModified     time.Time
}

var (
	localImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)`)
	fencePattern      = regexp.MustCompile("(?m)^```([a-zA-Z0-9_-]+)")
)

// DetectEmbeddedMedia reports whether the Markdown body references local
// images or diagram code fences, i.e. content that needs out-of-band upload.
func DetectEmbeddedMedia(body string, diagramLanguages []string) bool {
	for _, m := range localImagePattern.FindAllStringSubmatch(body, -1) {
		if isLocalImage(m[1]) {
			return true
		}
	}
	for _, m := range fencePattern.FindAllStringSubmatch(body, -1) {
		if IsDiagramLanguage(m[1], diagramLanguages) {
			return true
		}
	}
	return false
}

// IsDiagramLanguage reports whether a fence language tag names a diagram
// dialect that should be rendered to an image.
func IsDiagramLanguage(lang string, diagramLanguages []string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, dl := range diagramLanguages {
		if lang == strings.ToLower(dl) {
			return true
		}
	}
	return false
}

func isLocalImage(target string) bool {
	return !strings.HasPrefix(target, "http://") &&
		!strings.HasPrefix(target, "https://") &&
		!strings.HasPrefix(target, "data:")
}
