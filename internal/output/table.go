package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders views as an ASCII table.
type TableFormatter struct{}

// Format renders the tabular projection of view.
func (f *TableFormatter) Format(view *View) (string, error) {
	if view == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if view.Title != "" {
		t.SetTitle(view.Title)
	}
	t.AppendHeader(toRow(view.Header))

	for _, r := range view.Rows {
		t.AppendRow(toRow(r))
	}

	if view.Footer != "" && len(view.Header) > 0 {
		footer := make(table.Row, len(view.Header))
		footer[len(footer)-1] = view.Footer
		t.AppendFooter(footer)
	}

	return t.Render(), nil
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
