package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/steps"
	"github.com/jaki95/feedback-importer/internal/workflow"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const maxCellWidth = 48

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxCellWidth,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderBoard lists every wizard step with its status.
func renderBoard(st workflow.State, colorize bool) string {
	rows := make([][]string, 0, steps.Count)
	for i, s := range steps.All() {
		status := st.Steps.Get(s)
		marker := ""
		if s == st.Current {
			marker = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			marker + steps.Label(s),
			colorStatus(status, colorize),
		})
	}
	return renderTable([]string{"#", "Step", "Status"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})
}

func renderDataPreview(p *domain.DataPreview) string {
	if p == nil || len(p.Columns) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(p.Rows))
	for _, r := range p.Rows {
		row := make([]string, len(p.Columns))
		for i, c := range p.Columns {
			row[i] = r[c]
		}
		rows = append(rows, row)
	}
	return renderTable(p.Columns, rows, nil)
}

func renderColumnStats(stats []domain.ColumnStats) string {
	if len(stats) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		var shape []string
		if s.LooksNumeric {
			shape = append(shape, "numeric")
		}
		if s.LooksDateTime {
			shape = append(shape, "timestamp")
		}
		rows = append(rows, []string{
			s.Name,
			strconv.Itoa(s.NonEmpty),
			strconv.Itoa(s.Distinct),
			strings.Join(shape, ","),
			strings.Join(s.Samples, " | "),
		})
	}
	return renderTable(
		[]string{"Column", "Non-empty", "Distinct", "Shape", "Samples"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func renderMapping(m *domain.MappingPreview) string {
	if m == nil || len(m.Mappings) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(m.Mappings))
	for _, cm := range m.Mappings {
		rows = append(rows, []string{
			cm.Column,
			cm.Target,
			fmt.Sprintf("%.0f%%", cm.Confidence*100),
			strings.Join(cm.Samples, " | "),
		})
	}
	return renderTable(
		[]string{"Column", "Target", "Confidence", "Samples"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
}

// renderResult shows the imported records using only the target fields that
// occur in at least one of them.
func renderResult(r *domain.ResultPreview) string {
	if r == nil || len(r.Records) == 0 {
		return ""
	}
	var headers []string
	for _, f := range domain.TargetFields {
		for _, rec := range r.Records {
			if _, ok := rec[f]; ok {
				headers = append(headers, f)
				break
			}
		}
	}
	rows := make([][]string, 0, len(r.Records))
	for _, rec := range r.Records {
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = rec[h]
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, nil)
}

func summary(p *domain.Progress) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%d records: %d new, %d duplicate, %d failed.", p.Total, p.New, p.Duplicate, p.Failed)
}
