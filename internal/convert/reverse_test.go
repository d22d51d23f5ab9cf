package convert

import (
	"strings"
	"testing"
)

func reverse(t *testing.T, storage string) *Result {
	t.Helper()
	r := &Reverse{}
	res, err := r.Transform(storage)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	return res
}

func TestReverseHeadingsAndParagraphs(t *testing.T) {
	res := reverse(t, "<h2>Title</h2>\n<p>Some <em>styled</em> and <strong>bold</strong> text.</p>\n")

	want := "## Title\n\nSome *styled* and **bold** text.\n"
	if res.MarkdownContent != want {
		t.Errorf("MarkdownContent mismatch:\ngot:  %q\nwant: %q", res.MarkdownContent, want)
	}
}

func TestReverseCodeMacro(t *testing.T) {
	storage := `<ac:structured-macro ac:name="code">` +
		`<ac:parameter ac:name="language">go</ac:parameter>` +
		`<ac:plain-text-body><![CDATA[fmt.Println(42)]]></ac:plain-text-body>` +
		`</ac:structured-macro>`
	res := reverse(t, storage)

	want := "```go\nfmt.Println(42)\n```\n"
	if res.MarkdownContent != want {
		t.Errorf("MarkdownContent mismatch:\ngot:  %q\nwant: %q", res.MarkdownContent, want)
	}
}

func TestReverseAdmonitionMacro(t *testing.T) {
	storage := `<ac:structured-macro ac:name="info">` +
		`<ac:parameter ac:name="title">Note Title</ac:parameter>` +
		`<ac:rich-text-body><p>Body text.</p></ac:rich-text-body>` +
		`</ac:structured-macro>`
	res := reverse(t, storage)

	want := ":::info Note Title\nBody text.\n:::\n"
	if res.MarkdownContent != want {
		t.Errorf("MarkdownContent mismatch:\ngot:  %q\nwant: %q", res.MarkdownContent, want)
	}
}

func TestReverseUnknownMacroFlattens(t *testing.T) {
	storage := `<ac:structured-macro ac:name="toc"><ac:rich-text-body>contents</ac:rich-text-body></ac:structured-macro>`
	res := reverse(t, storage)

	if len(res.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %v", res.Warnings)
	}
	if !strings.Contains(res.Warnings[0], "toc") {
		t.Errorf("Warning should name the macro, got %q", res.Warnings[0])
	}
	if !strings.Contains(res.MarkdownContent, "contents") {
		t.Errorf("Macro body text should survive, got %q", res.MarkdownContent)
	}
}

func TestReverseTableWithHeader(t *testing.T) {
	storage := "<table><tbody>" +
		"<tr><th>Name</th><th>Value</th></tr>" +
		"<tr><td>a</td><td>1</td></tr>" +
		"</tbody></table>"
	res := reverse(t, storage)

	want := "| Name | Value |\n| --- | --- |\n| a | 1 |\n"
	if res.MarkdownContent != want {
		t.Errorf("MarkdownContent mismatch:\ngot:  %q\nwant: %q", res.MarkdownContent, want)
	}
}

func TestReverseTableWithoutHeader(t *testing.T) {
	storage := "<table><tbody>" +
		"<tr><td>a</td><td>1</td></tr>" +
		"<tr><td>b</td><td>2</td></tr>" +
		"</tbody></table>"
	res := reverse(t, storage)

	if strings.Contains(res.MarkdownContent, "---") {
		t.Errorf("Headerless table must not emit a separator row, got %q", res.MarkdownContent)
	}
	if !strings.Contains(res.MarkdownContent, "| a | 1 |") {
		t.Errorf("Data rows should survive, got %q", res.MarkdownContent)
	}
}

func TestReverseLists(t *testing.T) {
	res := reverse(t, "<ul><li>one</li><li>two<ul><li>nested</li></ul></li></ul>")

	want := "- one\n- two\n  - nested\n"
	if res.MarkdownContent != want {
		t.Errorf("MarkdownContent mismatch:\ngot:  %q\nwant: %q", res.MarkdownContent, want)
	}
}

func TestReverseOrderedList(t *testing.T) {
	res := reverse(t, "<ol><li>first</li><li>second</li></ol>")

	want := "1. first\n2. second\n"
	if res.MarkdownContent != want {
		t.Errorf("MarkdownContent mismatch:\ngot:  %q\nwant: %q", res.MarkdownContent, want)
	}
}

func TestReverseLinks(t *testing.T) {
	res := reverse(t, `<p>See <a href="https://example.com/x">the docs</a> or <a href="https://example.com/y">https://example.com/y</a>.</p>`)

	if !strings.Contains(res.MarkdownContent, "[the docs](https://example.com/x)") {
		t.Errorf("Labeled link mismatch: %q", res.MarkdownContent)
	}
	if !strings.Contains(res.MarkdownContent, "<https://example.com/y>") {
		t.Errorf("Autolink form mismatch: %q", res.MarkdownContent)
	}
}

func TestReverseBlockquote(t *testing.T) {
	res := reverse(t, "<blockquote><p>quoted line</p></blockquote>")

	want := "> quoted line\n"
	if res.MarkdownContent != want {
		t.Errorf("MarkdownContent mismatch:\ngot:  %q\nwant: %q", res.MarkdownContent, want)
	}
}

func TestReverseAttachmentImage(t *testing.T) {
	res := reverse(t, `<p><ac:image ac:alt="Alt"><ri:attachment ri:filename="pic.png" /></ac:image></p>`)

	if !strings.Contains(res.MarkdownContent, "![Alt](images/pic.png)") {
		t.Errorf("Attachment image should link under images/, got %q", res.MarkdownContent)
	}
	if res.Stats.Attachments != 1 {
		t.Errorf("Attachments = %d, want 1", res.Stats.Attachments)
	}
}

func TestReverseRemoteImage(t *testing.T) {
	res := reverse(t, `<p><ac:image><ri:url ri:value="https://example.com/pic.png" /></ac:image></p>`)

	if !strings.Contains(res.MarkdownContent, "![](https://example.com/pic.png)") {
		t.Errorf("Remote image should pass through, got %q", res.MarkdownContent)
	}
}

func TestReverseRenderedDiagramPlaceholder(t *testing.T) {
	res := reverse(t, `<ac:image><ri:attachment ri:filename="diagram-0123456789ab-0.png" /></ac:image>`)

	if !strings.Contains(res.MarkdownContent, "Automatic reconstruction of diagram source is not supported.") {
		t.Errorf("Rendered diagram should degrade to a placeholder fence, got %q", res.MarkdownContent)
	}
	if !strings.Contains(res.MarkdownContent, "diagram-0123456789ab-0.png") {
		t.Errorf("Placeholder should name the attachment, got %q", res.MarkdownContent)
	}
}

type fakeResolver struct {
	target  string
	warning string
}

func (f *fakeResolver) Resolve(string) (string, string) { return f.target, f.warning }

func TestReverseImageUsesResolver(t *testing.T) {
	r := &Reverse{Attachments: &fakeResolver{target: "images/local.png"}}
	res, err := r.Transform(`<ac:image><ri:attachment ri:filename="pic.png" /></ac:image>`)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if !strings.Contains(res.MarkdownContent, "![](images/local.png)") {
		t.Errorf("Resolver target should be used, got %q", res.MarkdownContent)
	}
}

func TestReverseImageResolverWarning(t *testing.T) {
	r := &Reverse{Attachments: &fakeResolver{target: "https://example.net/download/pic.png", warning: "download failed, linked remotely"}}
	res, err := r.Transform(`<ac:image><ri:attachment ri:filename="pic.png" /></ac:image>`)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if len(res.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %v", res.Warnings)
	}
	if !strings.Contains(res.MarkdownContent, "https://example.net/download/pic.png") {
		t.Errorf("Fallback URL should be used, got %q", res.MarkdownContent)
	}
}
