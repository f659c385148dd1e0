package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column.
type column struct {
	Title string
	Right bool
	// Merge folds repeated values in consecutive rows into one cell.
	Merge bool
	// State marks a column holding entry states; its cells are painted on a
	// terminal.
	State bool
}

type tableOptions struct {
	Colorize bool
	// Noun labels the row count in the footer, e.g. "site" gives "3 sites".
	Noun string
}

var stateColors = map[string]text.Colors{
	entryPassing:  {text.FgGreen},
	entryFailing:  {text.FgRed, text.Bold},
	entryErrored:  {text.FgRed},
	entryLoading:  {text.FgYellow},
	entryBaseline: {text.FgCyan},
	entryPending:  {text.Faint},
}

func renderTable(columns []column, rows [][]string, opts tableOptions) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col.Title
	}
	tw.AppendHeader(header)

	merge := false
	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, col := range columns {
		cfg := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
			AutoMerge:   col.Merge,
		}
		if col.Right {
			cfg.Align = text.AlignRight
		}
		if col.State && opts.Colorize {
			cfg.Transformer = paintState
		}
		merge = merge || col.Merge
		configs = append(configs, cfg)
	}
	tw.SetColumnConfigs(configs)
	if merge {
		tw.Style().Options.SeparateRows = true
	}

	if opts.Noun != "" {
		footer := make(table.Row, len(columns))
		footer[0] = pluralize(len(rows), opts.Noun)
		for i := 1; i < len(columns); i++ {
			footer[i] = ""
		}
		tw.AppendFooter(footer)
		tw.Style().Format.Footer = text.FormatDefault
	}

	return tw.Render()
}

func paintState(val any) string {
	state, _ := val.(string)
	if colors, ok := stateColors[state]; ok {
		return colors.Sprint(state)
	}
	return state
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
