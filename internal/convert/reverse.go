package convert

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// AttachmentResolver maps an attachment filename to the link target the
// rebuilt Markdown should use: a local relative path once the file is
// materialized, or the original remote URL as a fallback when download
// failed. A non-empty warning is recorded on the transform result.
type AttachmentResolver interface {
	Resolve(filename string) (target string, warning string)
}

// Reverse converts wiki storage-format markup back into Markdown. The
// storage dialect is parsed into an element tree first; all macro decoding
// pattern-matches over that tree rather than over raw text.
type Reverse struct {
	Attachments AttachmentResolver
}

// renderedDiagram matches attachment filenames produced by the push-side
// diagram pipeline. Diagram source cannot be reconstructed from the rendered
// image.
var renderedDiagram = regexp.MustCompile(`^diagram-[0-9a-f]{12}-\d+\.(png|svg)$`)

// Transform converts one page's storage content to Markdown.
func (r *Reverse) Transform(storage string) (*Result, error) {
	root, err := html.Parse(strings.NewReader(storage))
	if err != nil {
		return nil, fmt.Errorf("failed to parse storage content: %w", err)
	}

	body := findElement(root, "body")
	if body == nil {
		body = root
	}

	res := &Result{}
	w := &markdownWriter{r: r, res: res}
	var blocks []string
	for n := body.FirstChild; n != nil; n = n.NextSibling {
		if block := w.block(n); block != "" {
			blocks = append(blocks, block)
		}
	}

	res.MarkdownContent = strings.Join(blocks, "\n\n") + "\n"
	return res, nil
}

type markdownWriter struct {
	r   *Reverse
	res *Result
}

func (w *markdownWriter) block(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return strings.TrimSpace(n.Data)
	case html.ElementNode:
	default:
		return ""
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		return strings.Repeat("#", level) + " " + w.inlines(n)

	case "p":
		return w.inlines(n)

	case "blockquote":
		var lines []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if block := w.block(c); block != "" {
				for _, line := range strings.Split(block, "\n") {
					lines = append(lines, "> "+line)
				}
			}
		}
		return strings.Join(lines, "\n")

	case "ul", "ol":
		return w.list(n, 0)

	case "hr":
		return "---"

	case "table":
		return w.table(n)

	case "ac:structured-macro":
		return w.macro(n)

	case "ac:image":
		return w.image(n)

	case "div", "span", "ac:rich-text-body":
		var blocks []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if block := w.block(c); block != "" {
				blocks = append(blocks, block)
			}
		}
		return strings.Join(blocks, "\n\n")

	default:
		// Unknown elements degrade to their inline text.
		text := w.inlines(n)
		if text != "" {
			w.res.Warnings = append(w.res.Warnings,
				"unknown storage element <"+n.Data+"> flattened to text")
		}
		return text
	}
}

// macro decodes one ac:structured-macro element using the fixed macro →
// Markdown mapping table.
func (w *markdownWriter) macro(n *html.Node) string {
	name := attr(n, "ac:name")
	w.res.Stats.Macros++

	switch name {
	case "code":
		language := macroParameter(n, "language")
		body := plainTextBody(n)
		w.res.Stats.CodeBlocks++
		return "```" + language + "\n" + body + "\n```"

	case "info", "note", "warning", "tip":
		title := macroParameter(n, "title")
		body := findElement(n, "ac:rich-text-body")
		var inner []string
		if body != nil {
			for c := body.FirstChild; c != nil; c = c.NextSibling {
				if block := w.block(c); block != "" {
					inner = append(inner, block)
				}
			}
		}
		open := ":::" + name
		if title != "" {
			open += " " + title
		}
		return open + "\n" + strings.Join(inner, "\n\n") + "\n:::"

	default:
		w.res.Warnings = append(w.res.Warnings, "undecodable macro "+name+" flattened to text")
		return w.inlines(n)
	}
}

// image materializes attachment references as local files under images/ and
// passes remote URLs straight through.
func (w *markdownWriter) image(n *html.Node) string {
	alt := attr(n, "ac:alt")

	if ref := findElement(n, "ri:url"); ref != nil {
		return "![" + alt + "](" + attr(ref, "ri:value") + ")"
	}

	ref := findElement(n, "ri:attachment")
	if ref == nil {
		w.res.Warnings = append(w.res.Warnings, "image macro without reference dropped")
		return ""
	}
	filename := attr(ref, "ri:filename")

	if renderedDiagram.MatchString(filename) {
		// The outbound sync rendered this diagram to an image; the source is
		// not recoverable from the rasterized form.
		return "```\n" +
			"Rendered diagram attachment: " + filename + "\n" +
			"Automatic reconstruction of diagram source is not supported.\n" +
			"```"
	}

	w.res.Stats.Attachments++
	target := "images/" + filename
	if w.r.Attachments != nil {
		resolved, warning := w.r.Attachments.Resolve(filename)
		if warning != "" {
			w.res.Warnings = append(w.res.Warnings, warning)
		}
		if resolved != "" {
			target = resolved
		}
	}
	return "![" + alt + "](" + target + ")"
}

// table rebuilds a Markdown table. The header row comes from the first row's
// header cells; a table without header cells emits no separator row and all
// rows are data rows.
func (w *markdownWriter) table(n *html.Node) string {
	w.res.Stats.Tables++

	var rows []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "tr" {
				rows = append(rows, c)
				continue
			}
			collect(c)
		}
	}
	collect(n)
	if len(rows) == 0 {
		return ""
	}

	cellsOf := func(row *html.Node) (cells []string, header bool) {
		for c := row.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "th":
				header = true
				cells = append(cells, w.inlines(c))
			case "td":
				cells = append(cells, w.inlines(c))
			}
		}
		return cells, header
	}

	var b strings.Builder
	first, firstIsHeader := cellsOf(rows[0])
	b.WriteString("| " + strings.Join(first, " | ") + " |")
	if firstIsHeader {
		b.WriteString("\n|")
		for range first {
			b.WriteString(" --- |")
		}
	}
	for _, row := range rows[1:] {
		cells, _ := cellsOf(row)
		b.WriteString("\n| " + strings.Join(cells, " | ") + " |")
	}
	return b.String()
}

func (w *markdownWriter) list(n *html.Node, depth int) string {
	ordered := n.Data == "ol"
	indent := strings.Repeat("  ", depth)

	var lines []string
	index := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		index++

		marker := "- "
		if ordered {
			marker = fmt.Sprintf("%d. ", index)
		}

		var itemText []string
		var nested []string
		for ic := c.FirstChild; ic != nil; ic = ic.NextSibling {
			if ic.Type == html.ElementNode && (ic.Data == "ul" || ic.Data == "ol") {
				nested = append(nested, w.list(ic, depth+1))
				continue
			}
			if text := strings.TrimSpace(w.inlineNode(ic)); text != "" {
				itemText = append(itemText, text)
			}
		}

		lines = append(lines, indent+marker+strings.Join(itemText, " "))
		lines = append(lines, nested...)
	}
	return strings.Join(lines, "\n")
}

func (w *markdownWriter) inlines(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(w.inlineNode(c))
	}
	return strings.TrimSpace(b.String())
}

func (w *markdownWriter) inlineNode(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.ElementNode:
	default:
		return ""
	}

	switch n.Data {
	case "em", "i":
		return "*" + w.inlines(n) + "*"
	case "strong", "b":
		return "**" + w.inlines(n) + "**"
	case "code":
		return "`" + w.inlines(n) + "`"
	case "s", "del":
		return "~~" + w.inlines(n) + "~~"
	case "br":
		return "\n"
	case "a":
		label := w.inlines(n)
		href := attr(n, "href")
		if label == "" {
			label = href
		}
		if label == href {
			return "<" + href + ">"
		}
		return "[" + label + "](" + href + ")"
	case "ac:image":
		return w.image(n)
	case "p":
		return w.inlines(n)
	default:
		return w.inlines(n)
	}
}

// plainTextBody extracts a macro's CDATA body. The tree parser surfaces
// CDATA sections as comment nodes, so both shapes are handled.
func plainTextBody(macro *html.Node) string {
	body := findElement(macro, "ac:plain-text-body")
	if body == nil {
		return ""
	}
	var b strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
		case html.CommentNode:
			data := c.Data
			if strings.HasPrefix(data, "[CDATA[") {
				data = strings.TrimSuffix(strings.TrimPrefix(data, "[CDATA["), "]]")
			}
			b.WriteString(data)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func macroParameter(macro *html.Node, name string) string {
	for c := macro.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "ac:parameter" && attr(c, "ac:name") == name {
			var b strings.Builder
			for t := c.FirstChild; t != nil; t = t.NextSibling {
				if t.Type == html.TextNode {
					b.WriteString(t.Data)
				}
			}
			return strings.TrimSpace(b.String())
		}
	}
	return ""
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
