package convert

import (
	"testing"

	"github.com/gerunddev/wikibridge/internal/document"
)

// A document using only constructs with exact counterparts in both dialects
// must survive push-then-pull byte for byte.
func TestRoundtrip(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "headings and paragraphs",
			body: "# Title\n\nHello *world* and **bold**.",
		},
		{
			name: "code block",
			body: "```go\nfmt.Println(1)\n```",
		},
		{
			name: "table",
			body: "| Name | Value |\n| --- | --- |\n| a | 1 |",
		},
		{
			name: "admonition",
			body: ":::info Note Title\nBody text.\n:::",
		},
		{
			name: "lists",
			body: "- one\n- two",
		},
		{
			name: "mixed document",
			body: "# Guide\n\nIntro paragraph.\n\n```sh\nmake build\n```\n\n## Details\n\nMore text.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forward := testForward()
			pushed, err := forward.Transform(&document.Document{Path: "doc.md", Body: tt.body})
			if err != nil {
				t.Fatalf("forward transform failed: %v", err)
			}

			pulled, err := (&Reverse{}).Transform(pushed.StorageContent)
			if err != nil {
				t.Fatalf("reverse transform failed: %v", err)
			}

			want := tt.body + "\n"
			if pulled.MarkdownContent != want {
				t.Errorf("roundtrip drifted:\ninput:  %q\noutput: %q", tt.body, pulled.MarkdownContent)
			}
		})
	}
}
