// Package report 把 RunReport 落盘为 report.json 与 report.html。
package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"html/template"

	"github.com/John-Robertt/modsort/internal/archive"
	"github.com/John-Robertt/modsort/internal/domain"
	"github.com/John-Robertt/modsort/internal/infra/fsx"
)

const (
	JSONName = "report.json"
	HTMLName = "report.html"
)

//go:embed report.html.tmpl
var htmlSource string

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"size": archive.FormatSize,
}).Parse(htmlSource))

type view struct {
	R       domain.RunReport
	Headers []string
	Rows    []viewRow
}

type viewRow struct {
	Outcome string
	Cells   []string
	Dests   []string
	Error   string
}

// JSON 返回带缩进的 RunReport JSON（末尾换行）。
func JSON(rr domain.RunReport) ([]byte, error) {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// HTML 渲染汇总表；列集合与终端表格一致。
func HTML(rr domain.RunReport) ([]byte, error) {
	cols := domain.Columns{Exclusive: rr.Exclusive, Potato: rr.Potato}
	v := view{R: rr, Headers: cols.Headers(), Rows: make([]viewRow, 0, len(rr.Rows))}
	for _, row := range rr.Rows {
		v.Rows = append(v.Rows, viewRow{
			Outcome: string(row.Outcome),
			Cells:   cols.Cells(row),
			Dests:   row.Dests,
			Error:   row.ErrorMsg,
		})
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write 原子替换 dir 下的 report.json 与 report.html。
func Write(dir string, rr domain.RunReport) error {
	b, err := JSON(rr)
	if err != nil {
		return err
	}
	if err := fsx.WriteFileAtomicReplace(dir, JSONName, b); err != nil {
		return err
	}

	h, err := HTML(rr)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(dir, HTMLName, h)
}
