package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

// DefaultBaseURL 是 Modrinth v2 API 的根地址。
const DefaultBaseURL = "https://api.modrinth.com/v2"

// Modrinth 是 Catalog 的 HTTP 实现。
//
// 网络策略（UA/代理/重试/超时）由 HTTP client 决定；这里只负责限速、拼 URL、解 JSON。
type Modrinth struct {
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter
}

var _ Catalog = (*Modrinth)(nil)

// NewModrinth 构造客户端。perMinute<=0 表示不限速。
func NewModrinth(baseURL string, c *http.Client, perMinute, burst int) *Modrinth {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if c == nil {
		c = http.DefaultClient
	}
	var lim *rate.Limiter
	if perMinute > 0 {
		if burst < 1 {
			burst = 1
		}
		// 请求/分钟 -> 请求/秒
		lim = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
	}
	return &Modrinth{BaseURL: baseURL, HTTP: c, Limiter: lim}
}

func (m *Modrinth) VersionFile(ctx context.Context, sha1 string) (Version, error) {
	sha1 = strings.ToLower(strings.TrimSpace(sha1))
	if sha1 == "" {
		return Version{}, errors.New("sha1 不能为空")
	}
	u := m.BaseURL + "/version_file/" + url.PathEscape(sha1) + "?algorithm=sha1"

	var v Version
	if err := m.getJSON(ctx, u, &v); err != nil {
		var hs *HTTPStatusError
		if errors.As(err, &hs) && hs.StatusCode == http.StatusNotFound {
			return Version{}, ErrNotFound
		}
		return Version{}, err
	}
	return v, nil
}

func (m *Modrinth) Project(ctx context.Context, projectID string) (Project, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return Project{}, errors.New("project_id 不能为空")
	}
	u := m.BaseURL + "/project/" + url.PathEscape(projectID)

	var p Project
	if err := m.getJSON(ctx, u, &p); err != nil {
		return Project{}, err
	}
	return p, nil
}

func (m *Modrinth) getJSON(ctx context.Context, u string, dst any) error {
	if m.Limiter != nil {
		if err := m.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 读掉 body 以便连接复用；内容本身不关心。
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("解析响应失败 %s：%w", u, err)
	}
	return nil
}
