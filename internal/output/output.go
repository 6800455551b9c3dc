// Package output provides consistent CLI output formatting for snippet search results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/snipsearch/internal/search"
)

// Format selects how results are rendered.
type Format string

const (
	// FormatText renders a numbered, human-readable listing.
	FormatText Format = "text"
	// FormatJSON renders the entries as an indented JSON array.
	FormatJSON Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// Color palette.
const (
	colorAccent = "154"
	colorGray   = "245"
	colorYellow = "220"
	colorRed    = "196"
)

type styles struct {
	header  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	label   lipgloss.Style
	match   lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		return styles{
			header:  lipgloss.NewStyle(),
			success: lipgloss.NewStyle(),
			warning: lipgloss.NewStyle(),
			err:     lipgloss.NewStyle(),
			label:   lipgloss.NewStyle(),
			match:   lipgloss.NewStyle(),
		}
	}
	return styles{
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		match:   lipgloss.NewStyle().Bold(true),
	}
}

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
	st       styles
}

// New creates a new output Writer. Color is enabled only when out is a
// terminal and NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return NewWithColor(out, IsTTY(out) && !DetectNoColor())
}

// NewWithColor creates a Writer with color forced on or off.
func NewWithColor(out io.Writer, color bool) *Writer {
	return &Writer{out: out, useColor: color, st: newStyles(color)}
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.st.success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.st.warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.st.err.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Results renders entries in the given format.
func (w *Writer) Results(term string, entries []*search.ResultEntry, format Format) error {
	switch format {
	case FormatJSON:
		if entries == nil {
			entries = []*search.ResultEntry{}
		}
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	default:
		w.resultsText(term, entries)
		return nil
	}
}

func (w *Writer) resultsText(term string, entries []*search.ResultEntry) {
	if len(entries) == 0 {
		w.Status("", fmt.Sprintf("No snippets found for %q", term))
		return
	}

	noun := "snippets"
	if len(entries) == 1 {
		noun = "snippet"
	}
	_, _ = fmt.Fprintln(w.out, w.st.header.Render(fmt.Sprintf("Found %d %s for %q:", len(entries), noun, term)))
	w.Newline()

	for i, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = e.SnippetID
		}
		line := fmt.Sprintf("%d. %s %s", i+1, w.st.match.Render(name), w.st.label.Render("["+e.SnippetID+"]"))
		if e.Rating != nil {
			line += fmt.Sprintf(" %s", w.st.label.Render(fmt.Sprintf("★ %.1f (%d)", *e.Rating, e.RatingCount)))
		}
		_, _ = fmt.Fprintln(w.out, line)

		if len(e.Files) > 0 {
			w.Status("", w.st.label.Render("files: ")+strings.Join(e.Files, ", "))
		}
		for _, key := range sortedKeys(e.Highlights) {
			for _, frag := range e.Highlights[key] {
				w.Status("", fmt.Sprintf("%s %s", w.st.label.Render(key+":"), styleMarks(frag, w.st.match)))
			}
		}
		w.Newline()
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// highlightTags are the fragment markers emitted by the hosted service and bleve.
var highlightTags = [][2]string{{"<em>", "</em>"}, {"<mark>", "</mark>"}}

// styleMarks replaces highlight markers with the match style.
func styleMarks(frag string, style lipgloss.Style) string {
	for _, tag := range highlightTags {
		frag = styleTag(frag, tag[0], tag[1], style)
	}
	return frag
}

func styleTag(frag, open, closing string, style lipgloss.Style) string {
	var sb strings.Builder
	for {
		start := strings.Index(frag, open)
		if start < 0 {
			break
		}
		end := strings.Index(frag[start:], closing)
		if end < 0 {
			break
		}
		sb.WriteString(frag[:start])
		sb.WriteString(style.Render(frag[start+len(open) : start+end]))
		frag = frag[start+end+len(closing):]
	}
	sb.WriteString(frag)
	return sb.String()
}
