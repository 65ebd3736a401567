package run

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/modsort/internal/config"
	"github.com/John-Robertt/modsort/internal/domain"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	phases     []string
	started    []string
	rowCounts  []int
	lastRows   []domain.SummaryRow
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnFileStart(idx, total int, name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, name)
}

func (o *recordObserver) OnFileDone(idx, total int, rows []domain.SummaryRow, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if idx != len(rows) {
		panic("idx 应等于已累计行数")
	}
	o.rowCounts = append(o.rowCounts, len(rows))
	o.lastRows = rows
}

func TestExecuteWithObserver_EmitsPhaseAndFileEvents(t *testing.T) {
	mods, out := setup(t, map[string]string{"a.jar": "sodium", "b.jar": "jei", "c.jar": "x"})
	eff := effFor(mods, out)
	eff.Build = true

	obs := &recordObserver{}
	rr, err := ExecuteWithObserver(context.Background(), eff, standardCatalog(), nil, obs)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if obs.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
	}
	wantPhases := []string{"scan", "reset", "lookup", "archive"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	if !reflect.DeepEqual(obs.started, []string{"a.jar", "b.jar", "c.jar"}) {
		t.Fatalf("文件开始事件不符合预期：%v", obs.started)
	}
	if !reflect.DeepEqual(obs.rowCounts, []int{1, 2, 3}) {
		t.Fatalf("每个文件完成后都应收到完整的有序行：%v", obs.rowCounts)
	}
	if !reflect.DeepEqual(obs.lastRows, rr.Rows) {
		t.Fatalf("最后一次通知的行应与报告一致")
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	mods, out := setup(t, map[string]string{"a.jar": "sodium", "b.jar": "x"})
	cfg := effFor(mods, out)

	a, errA := Execute(context.Background(), cfg, standardCatalog(), nil)
	b, errB := ExecuteWithObserver(context.Background(), cfg, standardCatalog(), nil, &recordObserver{})
	if errA != nil || errB != nil {
		t.Fatalf("不期望错误：%v / %v", errA, errB)
	}

	// 时间与 run id 本身允许不同；对比时归零。
	a.StartedAt, a.FinishedAt, a.RunID = time.Time{}, time.Time{}, ""
	b.StartedAt, b.FinishedAt, b.RunID = time.Time{}, time.Time{}, ""

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", a, b)
	}
}
