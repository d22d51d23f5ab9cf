package document

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScanFindsMarkdownSorted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "zebra.md", "# Zebra")
	writeFile(t, root, "apple.md", "# Apple")
	writeFile(t, root, "guides/setup.md", "# Setup")
	writeFile(t, root, "notes.txt", "not markdown")

	s := &Scanner{Root: root}
	docs, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"apple.md", "guides/setup.md", "zebra.md"}
	if len(docs) != len(want) {
		t.Fatalf("Expected %d docs, got %d", len(want), len(docs))
	}
	for i, doc := range docs {
		if doc.Path != want[i] {
			t.Errorf("docs[%d].Path = %s, want %s", i, doc.Path, want[i])
		}
	}
}

func TestScanSkipsDotDirsAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md", "# Keep")
	writeFile(t, root, ".obsidian/config.md", "# Hidden")
	writeFile(t, root, "drafts/wip.md", "# WIP")

	s := &Scanner{Root: root, ExcludePatterns: []string{"drafts/*"}}
	docs, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(docs) != 1 || docs[0].Path != "keep.md" {
		t.Errorf("Expected only keep.md, got %+v", paths(docs))
	}
}

func TestTitlePrecedence(t *testing.T) {
	tests := []struct {
		name    string
		rel     string
		content string
		want    string
	}{
		{
			name:    "frontmatter title wins",
			rel:     "a.md",
			content: "---\ntitle: From Frontmatter\n---\n# From Heading\n",
			want:    "From Frontmatter",
		},
		{
			name:    "first heading",
			rel:     "b.md",
			content: "# From Heading\n\ntext\n",
			want:    "From Heading",
		},
		{
			name:    "humanized filename",
			rel:     "getting-started.md",
			content: "plain text only\n",
			want:    "Getting Started",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, tt.rel, tt.content)

			docs, err := (&Scanner{Root: root}).Scan()
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if len(docs) != 1 {
				t.Fatalf("Expected 1 doc, got %d", len(docs))
			}
			if docs[0].Title != tt.want {
				t.Errorf("Title = %q, want %q", docs[0].Title, tt.want)
			}
		})
	}
}

func TestCategoryOf(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.md", "# Home")
	writeFile(t, root, "guides/advanced/tuning.md", "# Tuning")

	docs, err := (&Scanner{Root: root}).Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	byPath := map[string]*Document{}
	for _, doc := range docs {
		byPath[doc.Path] = doc
	}

	if got := byPath["index.md"].Category; got != "" {
		t.Errorf("Root doc category = %q, want empty", got)
	}
	if got := byPath["guides/advanced/tuning.md"].Category; got != "guides/advanced" {
		t.Errorf("Nested doc category = %q, want guides/advanced", got)
	}
}

func TestMalformedFrontmatterDegrades(t *testing.T) {
	root := t.TempDir()
	content := "---\ntitle: [unclosed\n---\n# Fallback Heading\n"
	writeFile(t, root, "broken.md", content)

	docs, err := (&Scanner{Root: root}).Scan()
	if err != nil {
		t.Fatalf("Scan must not fail on malformed frontmatter: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected 1 doc, got %d", len(docs))
	}
	if docs[0].Body != content {
		t.Error("Malformed frontmatter should leave the whole file as body")
	}
}

func TestRawFrontmatterPreserved(t *testing.T) {
	root := t.TempDir()
	fm := "---\ntitle: Doc\ncustom_field: kept-verbatim\n---\n"
	writeFile(t, root, "doc.md", fm+"body\n")

	docs, err := (&Scanner{Root: root}).Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if docs[0].RawFrontmatter != fm {
		t.Errorf("RawFrontmatter = %q, want %q", docs[0].RawFrontmatter, fm)
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "doc.md", "# One")

	first, err := (&Scanner{Root: root}).Scan()
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, root, "doc.md", "# Two")
	second, err := (&Scanner{Root: root}).Scan()
	if err != nil {
		t.Fatal(err)
	}

	if first[0].Fingerprint == second[0].Fingerprint {
		t.Error("Fingerprint should change when content changes")
	}
}

func TestDetectEmbeddedMedia(t *testing.T) {
	langs := []string{"mermaid", "plantuml"}

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"diagram fence", "```mermaid\ngraph TD;\n```", true},
		{"local image", "![x](images/pic.png)", true},
		{"remote image only", "![x](https://example.com/pic.png)", false},
		{"plain code", "```go\nfmt.Println(1)\n```", false},
		{"no media", "just text", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectEmbeddedMedia(tt.body, langs); got != tt.want {
				t.Errorf("DetectEmbeddedMedia = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHumanizeSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"getting-started", "Getting Started"},
		{"api_reference", "Api Reference"},
		{"guides", "Guides"},
		{"multi-word_mix", "Multi Word Mix"},
	}

	for _, tt := range tests {
		if got := HumanizeSegment(tt.in); got != tt.want {
			t.Errorf("HumanizeSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStem(t *testing.T) {
	if got := Stem("guides/setup.md"); got != "setup" {
		t.Errorf("Stem = %q, want setup", got)
	}
}

func paths(docs []*Document) []string {
	var out []string
	for _, doc := range docs {
		out = append(out, doc.Path)
	}
	return out
}
