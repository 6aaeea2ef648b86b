package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/JaimeStill/sdgindex/internal/batch"
	"github.com/JaimeStill/sdgindex/internal/labels"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    60,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func resultsTable(results []batch.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		detail := candidatesCell(r.Candidates)
		if r.Outcome == batch.OutcomeError {
			detail = r.Error
		}
		rows = append(rows, []string{
			fmt.Sprint(r.Input.Row),
			r.Input.Title,
			r.Input.Author(),
			string(r.Outcome),
			detail,
		})
	}
	return renderTable(
		[]string{"Row", "Title", "Author", "Status", "Classifications"},
		rows,
		[]columnAlignment{alignRight},
	)
}

func candidatesCell(cs []labels.Candidate) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		if c.IsManualEdit {
			parts[i] = fmt.Sprintf("%s (edited)", c.Label)
			continue
		}
		parts[i] = fmt.Sprintf("%s (%.0f%%)", c.Label, c.Score*100)
	}
	return strings.Join(parts, ", ")
}

func summaryTable(s batch.Summary) string {
	return renderTable(
		[]string{"Success", "Low confidence", "Error"},
		[][]string{{fmt.Sprint(s.Success), fmt.Sprint(s.LowConfidence), fmt.Sprint(s.Error)}},
		[]columnAlignment{alignRight, alignRight, alignRight},
	)
}

func saveTable(report batch.SaveReport) string {
	rows := make([][]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		state := string(o.Status)
		switch {
		case o.Conflict != nil:
			state = fmt.Sprintf("duplicate of %s", o.Conflict.ExistingID)
		case o.Error != "":
			state = "failed: " + o.Error
		}
		rows = append(rows, []string{fmt.Sprint(o.Row), o.Title, state})
	}
	return renderTable([]string{"Row", "Title", "Result"}, rows, []columnAlignment{alignRight})
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
