package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"

	"github.com/John-Robertt/modsort/internal/app/run"
	"github.com/John-Robertt/modsort/internal/config"
	"github.com/John-Robertt/modsort/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 把 run 的事件转发给一个 bubbletea 程序（inline 模式，不占用 alt screen）。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - 每完成一个文件，整张汇总表重绘一次（超出一屏时只显示末尾几行，结束时打印完整表格）
type progressUI struct {
	p    *tea.Program
	done chan struct{}
}

func newProgressUI(w io.Writer, cols domain.Columns) *progressUI {
	u := &progressUI{done: make(chan struct{})}
	u.p = tea.NewProgram(newProgressModel(cols),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	go func() {
		defer close(u.done)
		_, _ = u.p.Run()
	}()
	return u
}

// Close 让程序渲染最终表格后退出，并等待其结束。
func (u *progressUI) Close() {
	u.p.Send(finishedMsg{})
	<-u.done
}

func (u *progressUI) OnStart(eff config.EffectiveConfig) {
	u.p.Send(startMsg{eff: eff, at: time.Now()})
}

func (u *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	u.p.Send(phaseMsg{name: name, fields: fields, dur: dur})
}

func (u *progressUI) OnFileStart(idx, total int, name string) {
	u.p.Send(fileStartMsg{idx: idx, total: total, name: name})
}

func (u *progressUI) OnFileDone(idx, total int, rows []domain.SummaryRow, dur time.Duration) {
	cp := make([]domain.SummaryRow, len(rows))
	copy(cp, rows)
	u.p.Send(fileDoneMsg{idx: idx, total: total, rows: cp, dur: dur})
}

type (
	startMsg struct {
		eff config.EffectiveConfig
		at  time.Time
	}
	phaseMsg struct {
		name   string
		fields map[string]any
		dur    time.Duration
	}
	fileStartMsg struct {
		idx, total int
		name       string
	}
	fileDoneMsg struct {
		idx, total int
		rows       []domain.SummaryRow
		dur        time.Duration
	}
	finishedMsg struct{}
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	unknownRow  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorRow    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type progressModel struct {
	cols    domain.Columns
	spinner spinner.Model

	done    int
	total   int
	current string
	rows    []domain.SummaryRow

	// height 为终端高度（未知时为 0）；用于让 inline 视图不超出一屏。
	height   int
	quitting bool
}

func newProgressModel(cols domain.Columns) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return progressModel{cols: cols, spinner: s}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startMsg:
		return m, tea.Println(formatStart(msg.eff, msg.at))
	case phaseMsg:
		if msg.name == "scan" {
			m.total = intField(msg.fields, "files")
		}
		return m, tea.Println(formatPhase(msg.name, msg.fields, msg.dur))
	case fileStartMsg:
		m.current = msg.name
		m.total = msg.total
		return m, nil
	case fileDoneMsg:
		m.done = msg.idx
		m.total = msg.total
		m.rows = msg.rows
		return m, nil
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil
	case finishedMsg:
		m.quitting = true
		if len(m.rows) == 0 {
			return m, tea.Quit
		}
		// 完整表格走 Println 打印到视图上方：inline 视图超过一屏会被裁掉表头。
		return m, tea.Sequence(tea.Println(renderTable(m.cols, m.rows)), tea.Quit)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	if len(m.rows) > 0 {
		shown, hidden := tailRows(m.rows, m.height)
		if hidden > 0 {
			fmt.Fprintf(&b, "%s\n", dimStyle.Render(fmt.Sprintf("… 前 %d 行已省略（完成后输出完整表格）", hidden)))
		}
		b.WriteString(renderTable(m.cols, shown))
		b.WriteString("\n")
	}
	if m.total > 0 {
		fmt.Fprintf(&b, "%s 查询中 [%d/%d] %s\n", m.spinner.View(), m.done, m.total, dimStyle.Render(m.current))
	}
	return b.String()
}

// tableChrome 是表格除数据行外占用的行数：上边框、表头、分隔线、下边框。
const tableChrome = 4

// tailRows 返回一屏能放下的最后若干行，以及被省略的行数。
// height<=0（未知）时不做裁剪；至少保留一行。
func tailRows(rows []domain.SummaryRow, height int) ([]domain.SummaryRow, int) {
	if height <= 0 {
		return rows, 0
	}
	// 预留：省略提示 1 行 + 表格边框 + 状态行 1 行。
	limit := height - tableChrome - 2
	if limit < 1 {
		limit = 1
	}
	if len(rows) <= limit {
		return rows, 0
	}
	return rows[len(rows)-limit:], len(rows) - limit
}

// renderTable 渲染汇总表；每列按固定宽度截断（超出以 … 结尾）。
func renderTable(cols domain.Columns, rows []domain.SummaryRow) string {
	widths := cols.Widths()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(cols.Headers()...).
		StyleFunc(func(row, col int) lipgloss.Style {
			st := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return st.Inherit(headerStyle)
			}
			if row >= 0 && row < len(rows) {
				switch rows[row].Outcome {
				case domain.OutcomeUnknown:
					st = st.Inherit(unknownRow)
				case domain.OutcomeError:
					st = st.Inherit(errorRow)
				}
			}
			return st
		})
	for _, r := range rows {
		t.Row(fitCells(cols.Cells(r), widths)...)
	}
	return t.String()
}

func fitCells(cells []string, widths []int) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		w := 0
		if i < len(widths) {
			w = widths[i]
		}
		out[i] = fit(c, w)
	}
	return out
}

func fit(s string, w int) string {
	if w <= 0 {
		return s
	}
	return truncate.StringWithTail(s, uint(w), "…")
}

func formatStart(eff config.EffectiveConfig, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] modsort run\n", at.Format("15:04:05"))
	fmt.Fprintln(&b, "配置（生效）:")
	fmt.Fprintf(&b, "  path: %s\n", eff.Path)
	fmt.Fprintf(&b, "  output: %s\n", eff.Output)
	mode := "normal"
	if eff.Exclusive {
		mode = "exclusive"
	}
	fmt.Fprintf(&b, "  mode: %s potato=%s build=%s\n", mode, onOff(eff.Potato), onOff(eff.Build))
	fmt.Fprintf(&b, "  api: %s\n", fit(eff.APIBaseURL, 120))
	fmt.Fprintf(&b, "  concurrency: %d rate_limit: %s\n", eff.Concurrency, formatRate(eff.RateLimit, eff.Burst))
	fmt.Fprintf(&b, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	if eff.Publish.Enabled() {
		fmt.Fprintf(&b, "  publish: %s/%s\n", eff.Publish.Endpoint, eff.Publish.Bucket)
	}
	if eff.ConfigFile != "" {
		fmt.Fprintf(&b, "  config: %s\n", eff.ConfigFile)
	}
	return b.String()
}

func formatPhase(name string, fields map[string]any, dur time.Duration) string {
	switch name {
	case "scan":
		return fmt.Sprintf("扫描: files=%d (%s)", intField(fields, "files"), formatShortDuration(dur))
	case "reset":
		return fmt.Sprintf("重置: dirs=%d (%s)", intField(fields, "dirs"), formatShortDuration(dur))
	case "lookup":
		return fmt.Sprintf("查询: found=%d unknown=%d error=%d (%s)",
			intField(fields, "found"), intField(fields, "unknown"), intField(fields, "error"), formatShortDuration(dur),
		)
	case "archive":
		return fmt.Sprintf("打包: size=%s entries=%d (%s)",
			stringField(fields, "size"), intField(fields, "entries"), formatShortDuration(dur),
		)
	case "publish":
		return fmt.Sprintf("上传: %s (%s)", stringField(fields, "location"), formatShortDuration(dur))
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		return fmt.Sprintf("%s (%s)", name, formatShortDuration(dur))
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatRate(perMinute, burst int) string {
	if perMinute <= 0 {
		return "off"
	}
	return fmt.Sprintf("%d/min burst=%d", perMinute, burst)
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + fit(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	s, _ := fields[key].(string)
	return s
}
