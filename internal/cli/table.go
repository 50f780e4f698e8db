package cli

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// newTable returns a plain table writer rendering to w.
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}
