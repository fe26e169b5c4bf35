package main

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/stxfxno/listify/spotify/types"
)

// renderCollection prints a collection listing. Group header rows keep the
// number column empty so track numbering matches the --track flag.
func renderCollection(out io.Writer, collection *types.Collection) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(collection.Title)
	t.AppendHeader(table.Row{"#", "Track"})

	n := 0
	for _, d := range collection.Tracks {
		if d.GroupHeader {
			t.AppendRow(table.Row{"", text.Bold.Sprint(d.Display)})
			continue
		}
		n++
		t.AppendRow(table.Row{strconv.Itoa(n), d.Display})
	}

	t.Render()
}
