// Package convert translates between Markdown documents and the wiki's
// macro-based storage format, in both directions.
package convert

// MediaKind distinguishes extracted media entries.
type MediaKind string

const (
	// MediaDiagram is a diagram code fence that must be rendered to an
	// image and uploaded before the final page write.
	MediaDiagram MediaKind = "diagram"
	// MediaImage is a local image reference that must be uploaded as an
	// attachment.
	MediaImage MediaKind = "image"
)

// Media is one piece of embedded content needing out-of-band upload.
type Media struct {
	Kind MediaKind
	// SourceToken is the diagram source or the local image path as written
	// in the document.
	SourceToken string
	// Language is the diagram dialect, empty for images.
	Language string
	// PlaceholderID identifies the in-content placeholder this entry will
	// replace once uploaded. Derived from content, so repeated transforms of
	// unchanged input produce identical output.
	PlaceholderID string
}

// Stats counts what a transformation pass did.
type Stats struct {
	LinksRewritten  int
	LinksUnresolved int
	Diagrams        int
	Images          int
	CodeBlocks      int
	Tables          int
	Macros          int
	Attachments     int
}

// Result is the output of one transformation pass. Exactly one of
// StorageContent and MarkdownContent is populated depending on direction.
type Result struct {
	StorageContent  string
	MarkdownContent string
	Media           []Media
	Stats           Stats
	Warnings        []string
}
