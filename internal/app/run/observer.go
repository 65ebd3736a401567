package run

import (
	"time"

	"github.com/John-Robertt/modsort/internal/config"
	"github.com/John-Robertt/modsort/internal/domain"
)

// Observer 用于把“运行进度/阶段/逐文件结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：OnFileStart 可能来自多个 worker goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnFileStart 在某个文件开始 hash+查询时调用。
	OnFileStart(idx, total int, name string)
	// OnFileDone 在某个文件放置完成后调用，rows 是截至目前的全部有序行（只读）。
	OnFileDone(idx, total int, rows []domain.SummaryRow, dur time.Duration)
}
