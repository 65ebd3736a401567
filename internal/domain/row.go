package domain

// Mark 是汇总表中的“存在”标记。
const Mark = "✅"

// SummaryRow 是每个已处理文件的一行汇总。
type SummaryRow struct {
	File      string         `json:"file"`
	SHA1      string         `json:"sha1"`
	ProjectID string         `json:"project_id"`
	Title     string         `json:"title"`
	Outcome   Outcome        `json:"outcome"`
	ErrorMsg  string         `json:"error_msg"`
	Class     Classification `json:"classification"`

	// Dests 是相对输出根目录的复制目标（按放置顺序）；为空表示被丢弃。
	Dests []string `json:"dests"`
}

// Columns 描述当前开关下汇总表的列集合。
type Columns struct {
	Exclusive bool
	Potato    bool
}

// Headers 返回表头（顺序固定）。
func (c Columns) Headers() []string {
	h := []string{"File", "Project", "Client", "Server"}
	if c.Exclusive {
		h = append(h, "Req. Client", "Req. Server")
	}
	if c.Potato {
		h = append(h, "Potato")
	}
	return h
}

// Widths 返回每列的显示宽度，与 Headers 一一对应。
func (c Columns) Widths() []int {
	w := []int{40, 40, 8, 8}
	if c.Exclusive {
		w = append(w, 12, 12)
	}
	if c.Potato {
		w = append(w, 8)
	}
	return w
}

// Cells 把一行渲染为字符串单元格，与 Headers 一一对应。
func (c Columns) Cells(r SummaryRow) []string {
	cells := []string{r.File, r.Title, mark(r.Class.Client), mark(r.Class.Server)}
	if c.Exclusive {
		cells = append(cells, mark(r.Class.ReqClient), mark(r.Class.ReqServer))
	}
	if c.Potato {
		cells = append(cells, mark(r.Class.Potato))
	}
	return cells
}

func mark(b bool) string {
	if b {
		return Mark
	}
	return ""
}
