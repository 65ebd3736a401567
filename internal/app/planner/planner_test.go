package planner

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/John-Robertt/modsort/internal/archive"
	"github.com/John-Robertt/modsort/internal/domain"
)

func TestNewLayout_Modes(t *testing.T) {
	root := "/tmp/out"

	n := NewLayout(root, false, false)
	if n.Client != filepath.Join(root, "client") || n.Server != filepath.Join(root, "server") || n.Both != "" || n.PotatoDir != "" {
		t.Fatalf("普通模式目录不正确：%+v", n)
	}
	if len(n.Dirs()) != 2 {
		t.Fatalf("普通模式应有 2 个目录：%v", n.Dirs())
	}

	e := NewLayout(root, true, true)
	if e.Client != filepath.Join(root, "exclusive", "client") || e.Both != filepath.Join(root, "exclusive", "both") {
		t.Fatalf("独占模式目录不正确：%+v", e)
	}
	if e.PotatoDir != filepath.Join(root, "potato") {
		t.Fatalf("potato 目录不正确：%q", e.PotatoDir)
	}
	if len(e.Dirs()) != 4 {
		t.Fatalf("pack 模式应有 4 个目录：%v", e.Dirs())
	}
}

func TestDestinations_NormalMode(t *testing.T) {
	l := NewLayout("/o", false, false)

	both := domain.Classification{Client: true, Server: true}
	if got := l.Destinations(both); !reflect.DeepEqual(got, []string{l.Client, l.Server}) {
		t.Fatalf("普通模式 client+server 应复制两份：%v", got)
	}
	if got := l.Destinations(domain.Classification{Client: true}); !reflect.DeepEqual(got, []string{l.Client}) {
		t.Fatalf("仅 client：%v", got)
	}
	if got := l.Destinations(domain.Classification{Server: true}); !reflect.DeepEqual(got, []string{l.Server}) {
		t.Fatalf("仅 server：%v", got)
	}
	if got := l.Destinations(domain.Classification{}); len(got) != 0 {
		t.Fatalf("两端都不需要应丢弃：%v", got)
	}
}

func TestDestinations_ExclusiveMode(t *testing.T) {
	l := NewLayout("/o", true, false)

	if got := l.Destinations(domain.Classification{Client: true, Server: true}); !reflect.DeepEqual(got, []string{l.Both}) {
		t.Fatalf("独占模式 client+server 只能进 both：%v", got)
	}
	if got := l.Destinations(domain.Classification{Client: true}); !reflect.DeepEqual(got, []string{l.Client}) {
		t.Fatalf("仅 client：%v", got)
	}
	if got := l.Destinations(domain.Classification{Server: true}); !reflect.DeepEqual(got, []string{l.Server}) {
		t.Fatalf("仅 server：%v", got)
	}
	if got := l.Destinations(domain.Classification{}); len(got) != 0 {
		t.Fatalf("两端都不需要应丢弃：%v", got)
	}
}

func TestDestinations_Potato(t *testing.T) {
	l := NewLayout("/o", true, true)

	fallback := domain.Classify(domain.FallbackEntry(domain.OutcomeUnknown))
	if got := l.Destinations(fallback); !reflect.DeepEqual(got, []string{l.PotatoDir, l.Both}) {
		t.Fatalf("兜底条目在 pack 模式应进 potato + both：%v", got)
	}

	clientOnly := domain.Classify(domain.CatalogEntry{ClientSide: domain.SideRequired, ServerSide: domain.SideUnsupported})
	if got := l.Destinations(clientOnly); !reflect.DeepEqual(got, []string{l.Client}) {
		t.Fatalf("server 不 required 时不应进 potato：%v", got)
	}

	optional := domain.Classify(domain.CatalogEntry{ClientSide: domain.SideRequired, ServerSide: domain.SideOptional})
	for _, d := range l.Destinations(optional) {
		if d == l.PotatoDir {
			t.Fatalf("server=optional 不应进 potato")
		}
	}

	off := NewLayout("/o", false, false)
	for _, d := range off.Destinations(fallback) {
		if d == "" {
			t.Fatalf("potato 关闭时不应产生空目标")
		}
	}
}

func TestResetAndArchiveSources(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, true, true)

	stale := filepath.Join(l.Client, "old.jar")
	if err := os.MkdirAll(l.Client, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	if err := l.Reset(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("Reset 应清除残留文件，Stat err=%v", err)
	}
	for _, d := range l.Dirs() {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Fatalf("Reset 后目录应存在：%s", d)
		}
	}

	got := l.ArchiveSources()
	want := []archive.Source{{Name: "client", Dir: l.Client}, {Name: "potato", Dir: l.PotatoDir}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("打包来源不正确：%+v", got)
	}

	if err := os.RemoveAll(l.Client); err != nil {
		t.Fatalf("删除失败：%v", err)
	}
	got = l.ArchiveSources()
	if len(got) != 1 || got[0].Name != "potato" {
		t.Fatalf("client 不存在时只应打包 potato：%+v", got)
	}
}

func TestArchiveSources_PotatoOff(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, false, false)
	if err := l.Reset(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// 即便磁盘上残留 potato 目录，potato 关闭时也不打包。
	if err := os.MkdirAll(filepath.Join(root, "potato"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	got := l.ArchiveSources()
	if len(got) != 1 || got[0].Name != "client" {
		t.Fatalf("期望只有 client：%+v", got)
	}
}

func TestRel(t *testing.T) {
	l := NewLayout(filepath.FromSlash("/o"), true, false)
	if got := l.Rel(filepath.Join(l.Both, "a.jar")); got != "exclusive/both/a.jar" {
		t.Fatalf("Rel 不正确：%q", got)
	}
}

func TestOwning(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(filepath.Join(root, "out"), true, true)
	for _, d := range []string{l.Client, l.Both, filepath.Join(l.PotatoDir, "nested")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("创建目录失败：%v", err)
		}
	}
	other := filepath.Join(root, "mods")
	if err := os.MkdirAll(other, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	if d, ok := l.Owning(l.Client); !ok || d != l.Client {
		t.Fatalf("源目录等于输出目录时应被识别：%q %v", d, ok)
	}
	if d, ok := l.Owning(filepath.Join(l.PotatoDir, "nested")); !ok || d != l.PotatoDir {
		t.Fatalf("源目录位于输出目录内时应被识别：%q %v", d, ok)
	}
	for _, p := range []string{other, l.Root, filepath.Join(root, "out", "exclusive")} {
		if d, ok := l.Owning(p); ok {
			t.Fatalf("%q 不在任何输出目录内，但被判为 %q", p, d)
		}
	}
	// server 目录尚未创建：不可能包含已存在的源目录。
	if _, ok := l.Owning(l.Server); ok {
		t.Fatalf("不存在的输出目录不应命中")
	}
}

func TestOwning_SymlinkedSource(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(filepath.Join(root, "out"), false, false)
	if err := os.MkdirAll(l.Client, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	link := filepath.Join(root, "link")
	if err := os.Symlink(l.Client, link); err != nil {
		t.Skipf("当前平台不支持符号链接：%v", err)
	}

	if _, ok := l.Owning(link); !ok {
		t.Fatalf("指向输出目录的符号链接也应被识别")
	}
}
