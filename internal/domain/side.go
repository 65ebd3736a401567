package domain

import "strings"

// Side 是 catalog 对某一端（client/server）的支持声明。
// 未知取值原样保留（例如 "unknown"），但既不算 required 也不算 optional。
type Side string

const (
	SideRequired    Side = "required"
	SideOptional    Side = "optional"
	SideUnsupported Side = "unsupported"
)

// ParseSide 做大小写/空白规范化。
func ParseSide(s string) Side {
	return Side(strings.ToLower(strings.TrimSpace(s)))
}

// Supported 表示该端需要安装（required 或 optional）。
func (s Side) Supported() bool {
	return s == SideRequired || s == SideOptional
}

func (s Side) Required() bool { return s == SideRequired }

// CatalogEntry 是远端 catalog 对某个内容哈希的解析结果。
type CatalogEntry struct {
	ProjectID  string `json:"project_id"`
	Title      string `json:"title"`
	ClientSide Side   `json:"client_side"`
	ServerSide Side   `json:"server_side"`
}

// Outcome 区分查找结果的三种情况。
type Outcome string

const (
	OutcomeFound   Outcome = "found"
	OutcomeUnknown Outcome = "unknown"
	OutcomeError   Outcome = "error"
)

const (
	TitleUnknown = "Unknown (Patched)"
	TitleError   = "Error (Patched)"
)

// FallbackEntry 返回 unknown/error 情况下使用的保守条目：两端都 required。
// 宁可多装，也不能漏掉可能必需的 mod。
func FallbackEntry(o Outcome) CatalogEntry {
	title := TitleUnknown
	if o == OutcomeError {
		title = TitleError
	}
	return CatalogEntry{
		Title:      title,
		ClientSide: SideRequired,
		ServerSide: SideRequired,
	}
}
