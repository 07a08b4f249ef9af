package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// column describes one table column. Width caps and soft-wraps the cells;
// zero leaves the column unbounded (ids, counts).
type column struct {
	Title string
	Align columnAlignment
	Width int
}

var (
	colChapterNumber = column{Title: "#", Align: alignRight}
	colChapterTitle  = column{Title: "Title", Width: 40}
	colWritten       = column{Title: "Written"}
	colImage         = column{Title: "Image"}

	bookListColumns = []column{
		{Title: "ID"},
		{Title: "Title", Width: 40},
		{Title: "Language"},
		{Title: "Status"},
		{Title: "Chapters", Align: alignRight},
		{Title: "Updated"},
	}
	outlineColumns = []column{
		colChapterNumber,
		colChapterTitle,
		{Title: "Pages", Align: alignRight},
		colWritten,
		colImage,
		{Title: "Opening", Width: 48},
	}
	progressColumns = []column{colChapterNumber, colChapterTitle, colWritten, colImage}
)

func bookCountLabel(n int) string {
	if n == 1 {
		return "1 book"
	}
	return strconv.Itoa(n) + " books"
}

// renderTable draws rows under columns. Short rows are padded; an optional
// footer is placed under the first columns.
func renderTable(columns []column, rows [][]string, footer ...string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(columns, func(i int) string { return columns[i].Title }))
	for _, row := range rows {
		tw.AppendRow(toRow(columns, func(i int) string { return cell(row, i) }))
	}
	if len(footer) > 0 {
		tw.AppendFooter(toRow(columns, func(i int) string { return cell(footer, i) }))
	}

	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, col := range columns {
		cfg := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
			AlignFooter: text.AlignLeft,
		}
		if col.Align == alignRight {
			cfg.Align = text.AlignRight
		}
		if col.Width > 0 {
			cfg.WidthMax = col.Width
			cfg.WidthMaxEnforcer = text.WrapSoft
		}
		configs = append(configs, cfg)
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func toRow(columns []column, value func(int) string) table.Row {
	row := make(table.Row, len(columns))
	for i := range columns {
		row[i] = value(i)
	}
	return row
}

func cell(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
