// Package report renders per-patch progress lines and the final summary.
// Output is purely observational; nothing upstream depends on it.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/cellmaster/oglpatch/internal/patch"
)

const maxPreviewWidth = 160

// scheme holds the colors used for report output. Green for success, red for
// failure, yellow for warnings, cyan for labels.
type scheme struct {
	ok    *color.Color
	fail  *color.Color
	warn  *color.Color
	label *color.Color
}

func newScheme() *scheme {
	return &scheme{
		ok:    color.New(color.FgGreen),
		fail:  color.New(color.FgRed),
		warn:  color.New(color.FgYellow),
		label: color.New(color.FgCyan),
	}
}

// Emitter writes human-readable report lines to a single writer. Color is
// enabled automatically when the writer is a terminal.
type Emitter struct {
	w       io.Writer
	verbose bool
	colored bool
	scheme  *scheme
}

// Option configures an Emitter.
type Option func(*Emitter)

// Verbose adds a compact diff preview of the first rewritten occurrence to
// each successful patch line.
func Verbose() Option {
	return func(e *Emitter) { e.verbose = true }
}

// NoColor forces plain output regardless of terminal detection.
func NoColor() Option {
	return func(e *Emitter) { e.colored = false }
}

// NewEmitter creates an Emitter writing to w.
func NewEmitter(w io.Writer, opts ...Option) *Emitter {
	e := &Emitter{
		w:       w,
		colored: isTerminal(w),
		scheme:  newScheme(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (e *Emitter) paint(c *color.Color, s string) string {
	if !e.colored {
		return s
	}
	return c.Sprint(s)
}

// Line writes one per-patch progress line:
//
//	patch K/N: <label>: <status>, <count> occurrence(s)
func (e *Emitter) Line(res patch.Result, total int) {
	status := e.paint(e.scheme.ok, "ok")
	switch {
	case !res.OK:
		status = e.paint(e.scheme.fail, "FAIL")
	case res.Warning:
		status = e.paint(e.scheme.warn, "warn")
	}

	fmt.Fprintf(e.w, "patch %d/%d: %s: %s, %d occurrence(s)\n",
		res.Ordinal, total, e.paint(e.scheme.label, res.Label), status, res.Count)

	if res.Diag != "" {
		fmt.Fprintf(e.w, "    %s\n", res.Diag)
	}
	if e.verbose && res.OK && res.Applied > 0 {
		fmt.Fprintf(e.w, "    %s\n", e.preview(res.Before, res.After))
	}
}

// Summary writes the aggregate outcome after all descriptors have reported.
func (e *Emitter) Summary(rep *patch.Report) {
	failed := rep.Failed()
	warned := rep.Warnings()

	if len(failed) == 0 {
		msg := fmt.Sprintf("All %d patches applied successfully", len(rep.Results))
		if len(warned) > 0 {
			msg += fmt.Sprintf(" (%d warning(s))", len(warned))
		}
		fmt.Fprintln(e.w, e.paint(e.scheme.ok, msg))
		return
	}

	fmt.Fprintln(e.w, e.paint(e.scheme.fail,
		fmt.Sprintf("%d of %d patches failed", len(failed), len(rep.Results))))
	for _, res := range failed {
		fmt.Fprintf(e.w, "  - patch %d (%s): %s\n", res.Ordinal, res.Label, res.Diag)
	}
}

// preview renders a compact single-line diff of before -> after. Deleted text
// is wrapped in -[...], inserted text in +[...]; newlines are escaped so the
// preview stays on one line.
func (e *Emitter) preview(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString(e.paint(e.scheme.fail, "-["+d.Text+"]"))
		case diffmatchpatch.DiffInsert:
			b.WriteString(e.paint(e.scheme.ok, "+["+d.Text+"]"))
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		}
	}
	line := strings.ReplaceAll(b.String(), "\n", `\n`)
	if len(line) > maxPreviewWidth {
		line = line[:maxPreviewWidth] + "..."
	}
	return line
}

// FormatSize formats bytes as a human-readable size.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
