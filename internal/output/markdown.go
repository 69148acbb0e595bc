package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders views as a markdown table.
type MarkdownFormatter struct{}

// Format renders the tabular projection of view as Markdown.
func (f *MarkdownFormatter) Format(view *View) (string, error) {
	if view == nil {
		return "", nil
	}

	var sb strings.Builder
	if view.Title != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(view.Title)))
	}

	sb.WriteString("| " + strings.Join(escapeAll(view.Header), " | ") + " |\n")
	seps := make([]string, len(view.Header))
	for i, h := range view.Header {
		seps[i] = strings.Repeat("-", max(3, len(h)))
	}
	sb.WriteString("|" + strings.Join(seps, "|") + "|\n")

	for _, r := range view.Rows {
		sb.WriteString("| " + strings.Join(escapeAll(r), " | ") + " |\n")
	}

	if view.Footer != "" {
		sb.WriteString(fmt.Sprintf("\n_%s_\n", view.Footer))
	}
	return sb.String(), nil
}

func escapeAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = escapeMarkdownCell(v)
	}
	return out
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
