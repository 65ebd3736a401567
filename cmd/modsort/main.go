package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/modsort/internal/app/run"
	"github.com/John-Robertt/modsort/internal/archive"
	"github.com/John-Robertt/modsort/internal/catalog"
	"github.com/John-Robertt/modsort/internal/config"
	"github.com/John-Robertt/modsort/internal/domain"
	"github.com/John-Robertt/modsort/internal/infra/httpx"
	"github.com/John-Robertt/modsort/internal/publish"
	"github.com/John-Robertt/modsort/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := runCmd(ctx, os.Args[1:], terminal{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		stdoutTTY: isTTY(os.Stdout),
		stderrTTY: isTTY(os.Stderr),
	})
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// terminal 描述 CLI 的输出端以及它们是否是交互终端。
type terminal struct {
	stdout io.Writer
	stderr io.Writer

	stdoutTTY bool
	stderrTTY bool
}

func runCmd(ctx context.Context, args []string, term terminal) int {
	for _, a := range args {
		if isHelp(a) {
			printUsage(term.stdout)
			return 0
		}
	}

	ra, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(term.stderr, "参数错误：%v\n\n", err)
		printUsage(term.stderr)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(term.stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	return execute(ctx, cwd, ra, term)
}

func execute(ctx context.Context, cwd string, ra config.CLIArgs, term terminal) int {
	eff, err := config.LoadEffective(cwd, ra)
	if err != nil {
		emitReport(term, failedReport(ra.Path, config.Code(err), err))
		return 1
	}

	httpClient, err := httpx.NewClient(httpx.Options{
		ProxyURL: eff.ProxyURL,
		RetryMax: eff.Retries,
		Timeout:  eff.Timeout,
	})
	if err != nil {
		emitReport(term, failedReport(eff.Path, config.ErrCodeInvalid, fmt.Errorf("proxy.url 无效：%w", err)))
		return 1
	}
	cat := catalog.NewModrinth(eff.APIBaseURL, httpClient, eff.RateLimit, eff.Burst)

	var up publish.Uploader
	if eff.Build && eff.Publish.Enabled() {
		s3, err := publish.New(eff.Publish)
		if err != nil {
			emitReport(term, failedReport(eff.Path, config.ErrCodeInvalid, fmt.Errorf("publish 配置无效：%w", err)))
			return 1
		}
		up = s3
	}

	progressW, interactive := pickProgressWriter(term)
	var ui *progressUI
	var obs run.Observer
	if interactive {
		ui = newProgressUI(progressW, domain.Columns{Exclusive: eff.Exclusive, Potato: eff.Potato})
		obs = ui
	}

	rr, runErr := run.ExecuteWithObserver(ctx, eff, cat, up, obs)
	if ui != nil {
		ui.Close()
	}
	if runErr != nil {
		rr.ErrorCode = runErrorCode(runErr)
		rr.ErrorMsg = runErr.Error()
	}

	// report.json / report.html 总是写入输出根目录。
	if err := report.Write(eff.Output, rr); err != nil {
		fmt.Fprintf(term.stderr, "写入报告失败：%v\n", err)
		emitReport(term, rr)
		return 1
	}

	emitReport(term, rr)
	if interactive {
		emitLocations(progressW, eff, rr)
	}
	if runErr != nil {
		return 1
	}
	return 0
}

func runErrorCode(err error) string {
	var pe *run.PublishError
	var se *run.SourceInOutputError
	switch {
	case errors.As(err, &pe):
		return domain.ErrCodePublishFailed
	case errors.As(err, &se):
		return config.ErrCodeInvalid
	case errors.Is(err, context.Canceled):
		return domain.ErrCodeInterrupted
	default:
		return domain.ErrCodeIOFailed
	}
}

func parseArgs(args []string) (config.CLIArgs, error) {
	ra := config.CLIArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		// -flag 与 --flag 等价。
		name := a
		if strings.HasPrefix(name, "--") {
			name = name[1:]
		}
		switch {
		case name == "-path" || name == "-config":
			if i+1 >= len(args) {
				return config.CLIArgs{}, fmt.Errorf("%s 需要一个值", a)
			}
			i++
			if err := setValue(&ra, name, args[i]); err != nil {
				return config.CLIArgs{}, err
			}
		case strings.HasPrefix(name, "-path=") || strings.HasPrefix(name, "-config="):
			k, v, _ := strings.Cut(name, "=")
			if err := setValue(&ra, k, v); err != nil {
				return config.CLIArgs{}, err
			}
		case name == "-exclusive":
			ra.Exclusive = true
		case name == "-potato":
			ra.Potato = true
		case name == "-pack":
			ra.Exclusive = true
			ra.Potato = true
		case name == "-build":
			ra.Build = true
		default:
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		}
	}
	return ra, nil
}

func setValue(ra *config.CLIArgs, key, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s 不能为空", key)
	}
	switch key {
	case "-path":
		if ra.Path != "" {
			return fmt.Errorf("重复的 -path：%q 与 %q", ra.Path, v)
		}
		ra.Path = v
	case "-config":
		ra.ConfigPath = v
	}
	return nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  modsort -path=<profile|绝对路径> [-exclusive] [-potato] [-pack] [-build] [-config=<file>]

参数：
  -path=<value>   mods 目录；绝对路径原样使用，否则视为 Modrinth App 的 profile 名称
  -exclusive      独占模式：client/server/both 三个目录互斥
  -potato         额外把两端都 required 的 mod 放入 potato/
  -pack           等价于 -exclusive -potato
  -build          生成 output/modpack.zip（client/ 与 potato/）
  -config=<file>  指定 YAML 配置文件（默认读取 ./modsort.yaml，若存在）
  -h, --help      显示帮助
`)
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	return fmt.Sprintf("完成：files=%d found=%d unknown=%d error=%d copies=%d dropped=%d",
		s.Files, s.Found, s.Unknown, s.Error, s.Copies, s.Dropped,
	)
}

func emitReport(term terminal, rr domain.RunReport) {
	if term.stdoutTTY {
		if rr.ErrorCode != "" {
			fmt.Fprintf(term.stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
		}
		fmt.Fprintln(term.stdout, summaryLine(rr))
		for _, row := range rr.Rows {
			if row.Outcome != domain.OutcomeError {
				continue
			}
			fmt.Fprintf(term.stderr, "%s %s: %s\n", row.File, row.Outcome, row.ErrorMsg)
		}
		if rr.Archive != nil {
			fmt.Fprintf(term.stdout, "modpack: %s (%s)\n", rr.Archive.Path, archive.FormatSize(rr.Archive.Size))
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(term.stdout)
	_ = enc.Encode(rr)
	if rr.ErrorCode != "" {
		fmt.Fprintf(term.stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
	}
	fmt.Fprintln(term.stderr, summaryLine(rr))
}

// failedReport 为尚未进入 run 阶段就失败的情况构造一个最小报告。
func failedReport(path, code string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Path:       path,
		StartedAt:  now,
		FinishedAt: now,
		ErrorCode:  code,
		ErrorMsg:   err.Error(),
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter(term terminal) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if term.stderrTTY {
		return term.stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if term.stdoutTTY {
		return term.stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, rr domain.RunReport) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "output: %s\n", eff.Output)
	fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Output, report.HTMLName))
	if rr.Publish != nil && rr.Publish.Location != "" {
		fmt.Fprintf(w, "published: %s\n", rr.Publish.Location)
	}
}
