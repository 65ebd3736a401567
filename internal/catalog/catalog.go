// Package catalog 定义远端 mod catalog 的查询契约，以及“查不到/查失败”的降级规则。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/modsort/internal/domain"
)

// Catalog 是远端 catalog 的最小查询面（两步：哈希 -> 版本 -> 项目）。
//
// 约束：实现不做缓存；每个文件每次 run 只查一次。
type Catalog interface {
	// VersionFile 按内容哈希查版本；哈希无匹配时返回 ErrNotFound。
	VersionFile(ctx context.Context, sha1 string) (Version, error)
	// Project 查项目详情（title + 两端支持声明）。
	Project(ctx context.Context, projectID string) (Project, error)
}

type Version struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

type Project struct {
	ID         string `json:"id"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	ClientSide string `json:"client_side"`
	ServerSide string `json:"server_side"`
}

// ErrNotFound 表示哈希在 catalog 中没有对应版本（不是故障）。
var ErrNotFound = errors.New("catalog: not found")

// HTTPStatusError 表示 catalog 返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, e.URL)
}

// Error 是查询阶段的可追溯错误（Stage: "version" 或 "project"）。
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage=%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolution 是一个文件的查询结论。
// Entry 总是可直接用于分类：unknown/error 时已替换为保守兜底条目。
type Resolution struct {
	Entry   domain.CatalogEntry
	Outcome domain.Outcome
	Err     error
}

// Resolve 执行两步查询并把结果归为 found / unknown / error 三类。
// 任何查询失败都被降级为 error 兜底，不向上传播。
func Resolve(ctx context.Context, c Catalog, sha1 string) Resolution {
	v, err := c.VersionFile(ctx, sha1)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fallback(domain.OutcomeUnknown, nil)
		}
		return fallback(domain.OutcomeError, &Error{Stage: "version", Err: err})
	}
	if strings.TrimSpace(v.ProjectID) == "" {
		return fallback(domain.OutcomeUnknown, nil)
	}

	p, err := c.Project(ctx, v.ProjectID)
	if err != nil {
		return fallback(domain.OutcomeError, &Error{Stage: "project", Err: err})
	}

	id := p.ID
	if id == "" {
		id = v.ProjectID
	}
	return Resolution{
		Entry: domain.CatalogEntry{
			ProjectID:  id,
			Title:      p.Title,
			ClientSide: domain.ParseSide(p.ClientSide),
			ServerSide: domain.ParseSide(p.ServerSide),
		},
		Outcome: domain.OutcomeFound,
	}
}

func fallback(o domain.Outcome, err error) Resolution {
	return Resolution{Entry: domain.FallbackEntry(o), Outcome: o, Err: err}
}
