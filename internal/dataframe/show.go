package dataframe

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// nullText is how Show renders null values.
const nullText = "null"

// Show writes the first n rows of df to w as a table, followed by a note when
// rows were left out.
func (df *DataFrame) Show(w io.Writer, n int) error {
	rows := min(max(n, 0), df.Len())

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(df.Columns()...)

	for i := range rows {
		cells := make([]string, 0, df.Width())
		for _, name := range df.order {
			s := df.columns[name]
			if s.IsNull(i) {
				cells = append(cells, nullText)
				continue
			}
			cells = append(cells, s.GetAsString(i))
		}
		t.Row(cells...)
	}

	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	if rows < df.Len() {
		if _, err := fmt.Fprintf(w, "only showing top %d rows\n", rows); err != nil {
			return fmt.Errorf("writing table footer: %w", err)
		}
	}
	return nil
}
