package planner

import (
	"path/filepath"
	"strings"

	"github.com/John-Robertt/modsort/internal/archive"
	"github.com/John-Robertt/modsort/internal/domain"
	"github.com/John-Robertt/modsort/internal/infra/fsx"
)

// Layout 是一次 run 的输出目录集合（成员由 exclusive/potato 开关决定）。
//
// 普通模式：<root>/client, <root>/server
// 独占模式：<root>/exclusive/{client,server,both}
// potato：  <root>/potato（与上面两种模式正交）
type Layout struct {
	Root      string
	Exclusive bool
	Potato    bool

	Client    string
	Server    string
	Both      string // 仅独占模式非空
	PotatoDir string // 仅 potato 模式非空
}

func NewLayout(root string, exclusive, potato bool) Layout {
	root = filepath.Clean(root)
	l := Layout{Root: root, Exclusive: exclusive, Potato: potato}

	if exclusive {
		base := filepath.Join(root, "exclusive")
		l.Client = filepath.Join(base, "client")
		l.Server = filepath.Join(base, "server")
		l.Both = filepath.Join(base, "both")
	} else {
		l.Client = filepath.Join(root, "client")
		l.Server = filepath.Join(root, "server")
	}
	if potato {
		l.PotatoDir = filepath.Join(root, "potato")
	}
	return l
}

// Dirs 返回当前开关下的全部输出目录（顺序固定）。
func (l Layout) Dirs() []string {
	dirs := []string{l.Client, l.Server}
	if l.Both != "" {
		dirs = append(dirs, l.Both)
	}
	if l.PotatoDir != "" {
		dirs = append(dirs, l.PotatoDir)
	}
	return dirs
}

// Reset 清空并重建全部输出目录；上一次 run 的残留文件不会混入本次结果。
func (l Layout) Reset() error {
	for _, d := range l.Dirs() {
		if err := fsx.ResetDir(d); err != nil {
			return err
		}
	}
	return nil
}

// Owning 返回包含 p（或等于 p）的输出目录；p 不在任何输出目录内时返回 false。
// 输出目录在 Reset 时会被清空，调用方据此拒绝把源目录放在其中。
// 尚不存在的输出目录不可能包含已存在的 p，直接跳过。
func (l Layout) Owning(p string) (string, bool) {
	p = resolvePath(p)
	for _, d := range l.Dirs() {
		real, err := filepath.EvalSymlinks(d)
		if err != nil {
			continue
		}
		if isWithin(real, p) {
			return d, true
		}
	}
	return "", false
}

func isWithin(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// resolvePath 尽量解析符号链接；失败时只做 Abs + Clean。
func resolvePath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if real, err := filepath.EvalSymlinks(p); err == nil {
		return real
	}
	return filepath.Clean(p)
}

// Destinations 按放置策略返回文件应复制到的目录（可能为空：文件被丢弃）。
//
// - potato 模式且两端 required：额外放入 potato
// - 独占模式：client+server -> both；仅 client -> client；仅 server -> server
// - 普通模式：client、server 各自独立判断（两者都满足则复制两份）
func (l Layout) Destinations(c domain.Classification) []string {
	dests := make([]string, 0, 3)
	if l.Potato && c.Potato {
		dests = append(dests, l.PotatoDir)
	}

	if l.Exclusive {
		switch {
		case c.Client && c.Server:
			dests = append(dests, l.Both)
		case c.Client:
			dests = append(dests, l.Client)
		case c.Server:
			dests = append(dests, l.Server)
		}
		return dests
	}

	if c.Client {
		dests = append(dests, l.Client)
	}
	if c.Server {
		dests = append(dests, l.Server)
	}
	return dests
}

// ArchiveSources 返回需要打包的目录：client（存在时）与 potato（potato 模式且存在时）。
// server 与 both 永远不打包。
func (l Layout) ArchiveSources() []archive.Source {
	out := make([]archive.Source, 0, 2)
	if fsx.DirExists(l.Client) {
		out = append(out, archive.Source{Name: "client", Dir: l.Client})
	}
	if l.Potato && l.PotatoDir != "" && fsx.DirExists(l.PotatoDir) {
		out = append(out, archive.Source{Name: "potato", Dir: l.PotatoDir})
	}
	return out
}

// Rel 把输出目录下的路径转换为相对 Root 的 slash 路径（用于报告）。
func (l Layout) Rel(p string) string {
	rel, err := filepath.Rel(l.Root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
