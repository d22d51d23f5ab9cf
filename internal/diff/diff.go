// Package diff renders dry-run previews of the local rewrites a pull sync
// would perform.
package diff

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// Unified computes a unified diff between the current local file content and
// the content a pull would write.
func Unified(path, current, incoming string) string {
	edits := myers.ComputeEdits(span.URIFromPath(path), current, incoming)
	return fmt.Sprint(gotextdiff.ToUnified(path, path+" (remote)", current, edits))
}

// Render pretty-prints a unified diff for the terminal. Falls back to the
// plain fenced diff when rendering is unavailable.
func Render(unified string) string {
	fenced := fmt.Sprintf("```diff\n%s```\n", unified)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return fenced
	}

	rendered, err := renderer.Render(fenced)
	if err != nil {
		return fenced
	}
	return rendered
}
