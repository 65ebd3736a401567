package run

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/modsort/internal/app/planner"
	"github.com/John-Robertt/modsort/internal/archive"
	"github.com/John-Robertt/modsort/internal/catalog"
	"github.com/John-Robertt/modsort/internal/config"
	"github.com/John-Robertt/modsort/internal/domain"
	"github.com/John-Robertt/modsort/internal/infra/fsx"
	"github.com/John-Robertt/modsort/internal/publish"
	"github.com/John-Robertt/modsort/internal/scan"
)

// ArchiveName 是 -build 产物在输出根目录下的文件名。
const ArchiveName = "modpack.zip"

// PublishError 表示打包已成功但上传失败；本地输出保持不变。
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string { return fmt.Sprintf("上传失败：%v", e.Err) }

func (e *PublishError) Unwrap() error { return e.Err }

// SourceInOutputError 表示源目录位于某个会被清空的输出目录内；此时不做任何写入。
type SourceInOutputError struct {
	Source string
	Output string
}

func (e *SourceInOutputError) Error() string {
	return fmt.Sprintf("源目录 %q 位于输出目录 %q 内（该目录每次运行都会被清空），请换一个 output 或先把 mods 移出", e.Source, e.Output)
}

// Execute 执行一次 run，并返回对外稳定的 RunReport。
// 单个文件的查询失败会被降级为 error 兜底行；文件系统错误则中止 run（返回已完成部分的报告与错误）。
// up 为 nil 表示不上传。
func Execute(ctx context.Context, eff config.EffectiveConfig, cat catalog.Catalog, up publish.Uploader) (domain.RunReport, error) {
	return ExecuteWithObserver(ctx, eff, cat, up, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, cat catalog.Catalog, up publish.Uploader, obs Observer) (domain.RunReport, error) {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Path:      eff.Path,
		Output:    eff.Output,
		Exclusive: eff.Exclusive,
		Potato:    eff.Potato,
		Build:     eff.Build,
		StartedAt: started,
		Rows:      make([]domain.SummaryRow, 0, 64),
	}
	finish := func(err error) (domain.RunReport, error) {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr, err
	}

	scanStarted := time.Now()
	files, err := scan.ScanMods(eff.Path)
	if err != nil {
		return finish(fmt.Errorf("扫描失败：%w", err))
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	}

	layout := planner.NewLayout(eff.Output, eff.Exclusive, eff.Potato)
	if dir, ok := layout.Owning(eff.Path); ok {
		return finish(&SourceInOutputError{Source: eff.Path, Output: dir})
	}
	resetStarted := time.Now()
	if err := layout.Reset(); err != nil {
		return finish(fmt.Errorf("重置输出目录失败：%w", err))
	}
	if obs != nil {
		obs.OnPhaseDone("reset", map[string]any{"dirs": len(layout.Dirs())}, time.Since(resetStarted))
	}

	lookupStarted := time.Now()
	if err := placeAll(ctx, eff, cat, layout, files, &rr, obs); err != nil {
		return finish(err)
	}
	if obs != nil {
		var found, unknown, failed int
		for _, row := range rr.Rows {
			switch row.Outcome {
			case domain.OutcomeFound:
				found++
			case domain.OutcomeUnknown:
				unknown++
			case domain.OutcomeError:
				failed++
			}
		}
		obs.OnPhaseDone("lookup", map[string]any{
			"found":   found,
			"unknown": unknown,
			"error":   failed,
		}, time.Since(lookupStarted))
	}

	if !eff.Build {
		return finish(nil)
	}

	archiveStarted := time.Now()
	res, err := archive.Build(filepath.Join(eff.Output, ArchiveName), layout.ArchiveSources())
	if err != nil {
		return finish(fmt.Errorf("打包失败：%w", err))
	}
	rr.Archive = &domain.ArchiveResult{Path: res.Path, Size: res.Size, Entries: res.Entries}
	if obs != nil {
		obs.OnPhaseDone("archive", map[string]any{
			"size":    archive.FormatSize(res.Size),
			"entries": len(res.Entries),
		}, time.Since(archiveStarted))
	}

	if up == nil {
		return finish(nil)
	}

	publishStarted := time.Now()
	loc, err := up.Upload(ctx, res.Path)
	if err != nil {
		rr.Publish = &domain.PublishResult{ErrorMsg: err.Error()}
		return finish(&PublishError{Err: err})
	}
	rr.Publish = &domain.PublishResult{Location: loc}
	if obs != nil {
		obs.OnPhaseDone("publish", map[string]any{"location": loc}, time.Since(publishStarted))
	}
	return finish(nil)
}

type lookupResult struct {
	idx  int
	sha1 string
	res  catalog.Resolution
	err  error
	dur  time.Duration
}

// placeAll 以 worker pool 并发做 hash+查询，但放置/复制/追加行/通知都在当前 goroutine
// 上按输入枚举顺序进行；concurrency=1 时即严格串行（同一时刻最多一个请求在途）。
func placeAll(parent context.Context, eff config.EffectiveConfig, cat catalog.Catalog, layout planner.Layout, files []domain.ModFile, rr *domain.RunReport, obs Observer) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}
	total := len(files)

	jobs := make(chan int)
	results := make(chan lookupResult, total)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- lookupOne(ctx, cat, files[idx], idx, total, obs)
			}
		}()
	}

	go func() {
	feed:
		for i := range files {
			select {
			case jobs <- i:
			case <-ctx.Done():
				break feed
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]lookupResult, workers)
	next := 0
	var fatal error
	for r := range results {
		pending[r.idx] = r
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if fatal != nil {
				continue
			}
			if err := placeOne(layout, files[cur.idx], cur, rr); err != nil {
				fatal = err
				cancel()
				continue
			}
			if obs != nil {
				obs.OnFileDone(len(rr.Rows), total, rr.Rows[:len(rr.Rows):len(rr.Rows)], cur.dur)
			}
		}
	}
	if fatal != nil {
		return fatal
	}
	if next < total {
		// 只有父 ctx 被取消时才会出现未处理完的文件。
		return fmt.Errorf("运行被中断：%w", parent.Err())
	}
	return nil
}

func lookupOne(ctx context.Context, cat catalog.Catalog, f domain.ModFile, idx, total int, obs Observer) lookupResult {
	started := time.Now()
	if err := ctx.Err(); err != nil {
		return lookupResult{idx: idx, err: err}
	}
	if obs != nil {
		obs.OnFileStart(idx+1, total, f.Name)
	}

	sum, err := scan.HashFile(f.AbsPath)
	if err != nil {
		return lookupResult{idx: idx, err: fmt.Errorf("读取 %q 失败：%w", f.Name, err), dur: time.Since(started)}
	}

	res := catalog.Resolve(ctx, cat, sum)
	if err := ctx.Err(); err != nil {
		// 取消导致的查询失败不能被当作 error 兜底行写出。
		return lookupResult{idx: idx, err: err}
	}
	return lookupResult{idx: idx, sha1: sum, res: res, dur: time.Since(started)}
}

func placeOne(layout planner.Layout, f domain.ModFile, r lookupResult, rr *domain.RunReport) error {
	if r.err != nil {
		return r.err
	}

	row := domain.SummaryRow{
		File:      f.Name,
		SHA1:      r.sha1,
		ProjectID: r.res.Entry.ProjectID,
		Title:     r.res.Entry.Title,
		Outcome:   r.res.Outcome,
		Class:     domain.Classify(r.res.Entry),
		Dests:     []string{},
	}
	if r.res.Err != nil {
		row.ErrorMsg = r.res.Err.Error()
	}

	for _, dir := range layout.Destinations(row.Class) {
		if err := fsx.CopyFile(f.AbsPath, dir, f.Name); err != nil {
			return fmt.Errorf("复制 %q 失败：%w", f.Name, err)
		}
		row.Dests = append(row.Dests, layout.Rel(filepath.Join(dir, f.Name)))
	}

	rr.Rows = append(rr.Rows, row)
	return nil
}
