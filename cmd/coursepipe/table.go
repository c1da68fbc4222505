package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type queueRow struct {
	Queue   string
	Role    string
	Pending int
}

func renderQueueTable(rows []queueRow) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Queue", "Role", "Pending"})
	for _, row := range rows {
		tw.AppendRow(table.Row{row.Queue, row.Role, row.Pending})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
