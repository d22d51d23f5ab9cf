package convert

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/gerunddev/wikibridge/internal/document"
	"github.com/gerunddev/wikibridge/internal/refindex"
)

// Forward converts Markdown into wiki storage-format markup, rewriting
// internal links through the reference index and queueing embedded media for
// out-of-band upload.
type Forward struct {
	Index    *refindex.Index
	BaseURL  string
	SpaceKey string
	// DiagramLanguages are fence language tags pulled out for rendering.
	DiagramLanguages []string
}

var forwardParser = goldmark.New(
	goldmark.WithExtensions(
		extension.Table,
		extension.Strikethrough,
		extension.TaskList,
	),
)

// Transform runs the full forward pass for one document. It never fails on
// malformed content: unconvertible constructs degrade to escaped literal
// blocks and a warning.
func (f *Forward) Transform(doc *document.Document) (*Result, error) {
	res := &Result{}

	segments, warnings := splitAdmonitions(doc.Body)
	res.Warnings = append(res.Warnings, warnings...)

	var b strings.Builder
	for _, seg := range segments {
		if seg.admonition == "" {
			f.renderMarkdown(&b, seg.text, doc.Path, res)
			continue
		}
		res.Stats.Macros++
		b.WriteString(`<ac:structured-macro ac:name="` + seg.admonition + `">`)
		if seg.title != "" {
			b.WriteString(`<ac:parameter ac:name="title">` + escapeText(seg.title) + `</ac:parameter>`)
		}
		b.WriteString(`<ac:rich-text-body>`)
		var body strings.Builder
		f.renderMarkdown(&body, seg.text, doc.Path, res)
		b.WriteString(strings.TrimRight(body.String(), "\n"))
		b.WriteString("</ac:rich-text-body></ac:structured-macro>\n")
	}

	res.StorageContent = b.String()
	return res, nil
}

// renderMarkdown parses one markdown fragment and appends its storage-format
// rendition, accumulating media, stats and warnings on res.
func (f *Forward) renderMarkdown(b *strings.Builder, markdown, sourcePath string, res *Result) {
	source := []byte(markdown)
	root := forwardParser.Parser().Parse(text.NewReader(source))

	w := &storageWriter{f: f, source: source, sourcePath: sourcePath, res: res, b: b}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n)
	}
}

type storageWriter struct {
	f          *Forward
	source     []byte
	sourcePath string
	res        *Result
	b          *strings.Builder
}

func (w *storageWriter) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		w.b.WriteString(fmt.Sprintf("<h%d>", n.Level))
		w.inlines(n)
		w.b.WriteString(fmt.Sprintf("</h%d>\n", n.Level))

	case *ast.Paragraph:
		w.b.WriteString("<p>")
		w.inlines(n)
		w.b.WriteString("</p>\n")

	case *ast.TextBlock:
		w.inlines(n)

	case *ast.Blockquote:
		w.b.WriteString("<blockquote>")
		w.children(n)
		w.b.WriteString("</blockquote>\n")

	case *ast.FencedCodeBlock:
		lang := string(n.Language(w.source))
		body := w.nodeLines(n)
		if document.IsDiagramLanguage(lang, w.f.DiagramLanguages) {
			id := placeholderID(body, len(w.res.Media))
			w.res.Media = append(w.res.Media, Media{
				Kind:          MediaDiagram,
				SourceToken:   body,
				Language:      lang,
				PlaceholderID: id,
			})
			w.res.Stats.Diagrams++
			w.b.WriteString("<p>" + PlaceholderToken(id) + "</p>\n")
			return
		}
		w.res.Stats.CodeBlocks++
		w.b.WriteString(codeMacro(lang, body) + "\n")

	case *ast.CodeBlock:
		w.res.Stats.CodeBlocks++
		w.b.WriteString(codeMacro("", w.nodeLines(n)) + "\n")

	case *ast.List:
		tag := "ul"
		if n.IsOrdered() {
			tag = "ol"
		}
		w.b.WriteString("<" + tag + ">")
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			w.b.WriteString("<li>")
			w.children(item)
			w.b.WriteString("</li>")
		}
		w.b.WriteString("</" + tag + ">\n")

	case *ast.ThematicBreak:
		w.b.WriteString("<hr />\n")

	case *east.Table:
		w.table(n)

	case *ast.HTMLBlock:
		// Raw HTML is not trusted to be valid storage markup; degrade to an
		// escaped literal block.
		w.res.Warnings = append(w.res.Warnings, "raw HTML block escaped: "+w.sourcePath)
		w.b.WriteString("<p>" + escapeText(w.nodeLines(n)) + "</p>\n")

	default:
		w.res.Warnings = append(w.res.Warnings,
			fmt.Sprintf("unsupported block %s escaped: %s", n.Kind(), w.sourcePath))
		w.b.WriteString("<p>" + escapeText(w.nodeLines(n)) + "</p>\n")
	}
}

func (w *storageWriter) children(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c)
	}
}

func (w *storageWriter) table(t *east.Table) {
	w.res.Stats.Tables++
	w.b.WriteString("<table><tbody>")
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		w.b.WriteString("<tr>")
		header := false
		if _, ok := row.(*east.TableHeader); ok {
			header = true
		}
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			tag := "td"
			if header {
				tag = "th"
			}
			w.b.WriteString("<" + tag + ">")
			w.inlines(cell)
			w.b.WriteString("</" + tag + ">")
		}
		w.b.WriteString("</tr>")
	}
	w.b.WriteString("</tbody></table>\n")
}

func (w *storageWriter) inlines(parent ast.Node) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		w.inline(c)
	}
}

func (w *storageWriter) inline(n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		w.b.WriteString(escapeText(string(n.Segment.Value(w.source))))
		if n.HardLineBreak() {
			w.b.WriteString("<br />")
		} else if n.SoftLineBreak() {
			w.b.WriteString(" ")
		}

	case *ast.String:
		w.b.WriteString(escapeText(string(n.Value)))

	case *ast.CodeSpan:
		w.b.WriteString("<code>" + escapeText(textContent(n, w.source)) + "</code>")

	case *ast.Emphasis:
		tag := "em"
		if n.Level == 2 {
			tag = "strong"
		}
		w.b.WriteString("<" + tag + ">")
		w.inlines(n)
		w.b.WriteString("</" + tag + ">")

	case *east.Strikethrough:
		w.b.WriteString("<s>")
		w.inlines(n)
		w.b.WriteString("</s>")

	case *east.TaskCheckBox:
		if n.IsChecked {
			w.b.WriteString("[x] ")
		} else {
			w.b.WriteString("[ ] ")
		}

	case *ast.Link:
		w.link(string(n.Destination), n)

	case *ast.AutoLink:
		u := string(n.URL(w.source))
		w.b.WriteString(`<a href="` + escapeAttr(u) + `">` + escapeText(u) + "</a>")

	case *ast.Image:
		w.image(n)

	case *ast.RawHTML:
		w.res.Warnings = append(w.res.Warnings, "raw inline HTML escaped: "+w.sourcePath)
		w.b.WriteString(escapeText(rawHTMLText(n, w.source)))

	default:
		w.b.WriteString(escapeText(textContent(n, w.source)))
	}
}

// link rewrites internal cross-references to the canonical wiki URL.
// Unresolvable internal tokens pass through unmodified; this is counted, not
// fatal.
func (w *storageWriter) link(dest string, n ast.Node) {
	href := dest
	if target, ok := w.f.Index.Resolve(dest, w.sourcePath); ok {
		href = target.URL(w.f.BaseURL, w.f.SpaceKey)
		w.res.Stats.LinksRewritten++
	} else if isInternalToken(dest) {
		w.res.Stats.LinksUnresolved++
	}
	w.b.WriteString(`<a href="` + escapeAttr(href) + `">`)
	w.inlines(n)
	w.b.WriteString("</a>")
}

// image marks local images as attachment references (filename only) and
// queues them for upload; remote URLs embed directly.
func (w *storageWriter) image(n *ast.Image) {
	dest := string(n.Destination)
	alt := textContent(n, w.source)

	if !isInternalToken(dest) {
		w.b.WriteString(`<ac:image`)
		if alt != "" {
			w.b.WriteString(` ac:alt="` + escapeAttr(alt) + `"`)
		}
		w.b.WriteString(`><ri:url ri:value="` + escapeAttr(dest) + `" /></ac:image>`)
		return
	}

	filename := dest
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		filename = filename[i+1:]
	}
	w.res.Media = append(w.res.Media, Media{
		Kind:        MediaImage,
		SourceToken: dest,
	})
	w.res.Stats.Images++

	w.b.WriteString(`<ac:image`)
	if alt != "" {
		w.b.WriteString(` ac:alt="` + escapeAttr(alt) + `"`)
	}
	w.b.WriteString(`><ri:attachment ri:filename="` + escapeAttr(filename) + `" /></ac:image>`)
}

func (w *storageWriter) nodeLines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(w.source))
	}
	return strings.TrimRight(b.String(), "\n")
}

func isInternalToken(dest string) bool {
	return dest != "" &&
		!strings.Contains(dest, "://") &&
		!strings.HasPrefix(dest, "mailto:") &&
		!strings.HasPrefix(dest, "data:") &&
		!strings.HasPrefix(dest, "#")
}

func textContent(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func rawHTMLText(n *ast.RawHTML, source []byte) string {
	var b strings.Builder
	for i := 0; i < n.Segments.Len(); i++ {
		seg := n.Segments.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}

// placeholderID derives a stable identifier from the media content, so
// transforming unchanged input twice yields byte-identical output.
func placeholderID(content string, ordinal int) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x-%d", sum[:6], ordinal)
}

// PlaceholderToken is the literal text substituted where extracted media will
// be slotted in after upload.
func PlaceholderToken(id string) string {
	return "wikibridge:media:" + id
}

// ReplaceMediaPlaceholder swaps a media placeholder for an attachment image
// macro, the second stage of the create-then-patch write.
func ReplaceMediaPlaceholder(storage, id, filename string) string {
	macro := `<ac:image><ri:attachment ri:filename="` + escapeAttr(filename) + `" /></ac:image>`
	return strings.Replace(storage, "<p>"+PlaceholderToken(id)+"</p>", macro, 1)
}

// ReplaceMediaFallback swaps a media placeholder for the literal code fence
// it came from, used when rendering or upload failed so the surrounding text
// still pushes.
func ReplaceMediaFallback(storage, id, source, language string) string {
	return strings.Replace(storage, "<p>"+PlaceholderToken(id)+"</p>", codeMacro(language, source), 1)
}

func codeMacro(language, body string) string {
	var b strings.Builder
	b.WriteString(`<ac:structured-macro ac:name="code">`)
	if language != "" {
		b.WriteString(`<ac:parameter ac:name="language">` + escapeText(language) + `</ac:parameter>`)
	}
	b.WriteString(`<ac:plain-text-body><![CDATA[` + escapeCDATA(body) + `]]></ac:plain-text-body></ac:structured-macro>`)
	return b.String()
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }

func escapeCDATA(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}

// admonitionSegment is either a run of plain markdown (admonition == "") or
// one ":::type title" block with its inner markdown.
type admonitionSegment struct {
	admonition string
	title      string
	text       string
}

var admonitionOpen = regexp.MustCompile(`^:::([A-Za-z]+)(?:\s+(.*?))?\s*$`)

var admonitionNames = map[string]string{
	"info":      "info",
	"note":      "note",
	"warning":   "warning",
	"caution":   "warning",
	"danger":    "warning",
	"tip":       "tip",
	"important": "tip",
}

// splitAdmonitions carves ":::type title ... :::" blocks out of a markdown
// body. Lines inside a code fence are never treated as admonition markers.
// An unterminated block degrades to literal text with a warning.
func splitAdmonitions(body string) ([]admonitionSegment, []string) {
	var segments []admonitionSegment
	var warnings []string
	var plain []string

	flush := func() {
		if len(plain) > 0 {
			segments = append(segments, admonitionSegment{text: strings.Join(plain, "\n")})
			plain = nil
		}
	}

	var fence string
	lines := strings.Split(body, "\n")
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])

		if fence != "" {
			plain = append(plain, lines[i])
			if isFenceClose(trimmed, fence) {
				fence = ""
			}
			continue
		}
		if f := fenceOpen(trimmed); f != "" {
			fence = f
			plain = append(plain, lines[i])
			continue
		}

		m := admonitionOpen.FindStringSubmatch(trimmed)
		if m == nil {
			plain = append(plain, lines[i])
			continue
		}

		name, known := admonitionNames[strings.ToLower(m[1])]
		if !known {
			name = "note"
		}

		end := -1
		bodyFence := ""
		for j := i + 1; j < len(lines); j++ {
			t := strings.TrimSpace(lines[j])
			if bodyFence != "" {
				if isFenceClose(t, bodyFence) {
					bodyFence = ""
				}
				continue
			}
			if f := fenceOpen(t); f != "" {
				bodyFence = f
				continue
			}
			if t == ":::" {
				end = j
				break
			}
		}
		if end == -1 {
			warnings = append(warnings, "unterminated admonition block, kept literal")
			plain = append(plain, lines[i])
			continue
		}

		flush()
		segments = append(segments, admonitionSegment{
			admonition: name,
			title:      strings.TrimSpace(m[2]),
			text:       strings.Join(lines[i+1:end], "\n"),
		})
		i = end
	}
	flush()
	return segments, warnings
}

// fenceOpen returns the delimiter run that opens a code fence, or "".
func fenceOpen(line string) string {
	for _, ch := range []byte{'`', '~'} {
		n := 0
		for n < len(line) && line[n] == ch {
			n++
		}
		if n >= 3 {
			return line[:n]
		}
	}
	return ""
}

// isFenceClose reports whether line closes a fence opened by open: a run of
// the same delimiter character at least as long, with nothing after it.
func isFenceClose(line, open string) bool {
	if len(line) < len(open) {
		return false
	}
	return strings.Trim(line, string(open[0])) == ""
}
