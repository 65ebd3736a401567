package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/modsort/internal/catalog"
	"github.com/John-Robertt/modsort/internal/publish"
)

const (
	// ErrCodeNotFound 表示 -config 显式指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示 CLI 与配置文件都没有给出 mods 路径。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	// DefaultFileName 是 cwd 下自动发现的配置文件名。
	DefaultFileName = "modsort.yaml"
	// DefaultOutput 是输出根目录（相对 cwd）。
	DefaultOutput = "output"
	// DefaultRateLimit 是 catalog 请求上限（请求/分钟），与 Modrinth 公布的限额一致。
	DefaultRateLimit = 300
	DefaultBurst     = 5
	// MaxConcurrency 是并发查询的上限；默认 1 即严格串行。
	MaxConcurrency = 16
	MaxRetries     = 5
)

// CLIArgs 是命令行入口。布尔开关只能“打开”，不能关闭配置文件里的 true。
type CLIArgs struct {
	Path       string
	ConfigPath string

	Exclusive bool
	Potato    bool
	Build     bool
}

// FileConfig 对应 modsort.yaml 的解析结构。
type FileConfig struct {
	Path         string         `yaml:"path"`
	Output       string         `yaml:"output"`
	ProfilesRoot string         `yaml:"profiles_root"`
	Exclusive    bool           `yaml:"exclusive"`
	Potato       bool           `yaml:"potato"`
	Build        bool           `yaml:"build"`
	APIBaseURL   string         `yaml:"api_base_url"`
	Concurrency  int            `yaml:"concurrency"`
	RateLimit    int            `yaml:"rate_limit"`
	Burst        int            `yaml:"burst"`
	Timeout      string         `yaml:"timeout"`
	Retries      int            `yaml:"retries"`
	Proxy        *ProxyConfig   `yaml:"proxy"`
	Publish      publish.Config `yaml:"publish"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// Path 是 mods 源目录（clean + absolute）。
	Path   string
	Output string

	Exclusive bool
	Potato    bool
	Build     bool

	APIBaseURL  string
	Concurrency int
	// RateLimit 为 0 表示不限速。
	RateLimit int
	Burst     int
	Timeout   time.Duration
	Retries   int
	ProxyURL  string

	Publish publish.Config

	// ConfigFile 是实际读取的配置文件；未读取为空。
	ConfigFile string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：未指定 mods 路径，请使用 -path=<profile 或绝对路径>", e.Code)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 给了 -config：必须存在
// 2) 否则尝试 <cwd>/modsort.yaml（可选）
//
// 覆盖优先级（固定）：
// - path：CLI > config；两者都缺失 => config_missing_path
// - exclusive/potato/build：CLI 打开 或 config 打开
// - 其他字段：仅由 config 控制
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, DefaultFileName)
	required := false
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	raw := strings.TrimSpace(cli.Path)
	if raw == "" {
		raw = strings.TrimSpace(fc.Path)
	}
	if raw == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	profilesRoot := strings.TrimSpace(fc.ProfilesRoot)
	if profilesRoot != "" {
		profilesRoot = absCleanFrom(cwdAbs, profilesRoot)
	} else {
		profilesRoot = DefaultProfilesRoot()
	}
	modsPath := ResolveModsPath(raw, profilesRoot)

	output := strings.TrimSpace(fc.Output)
	if output == "" {
		output = DefaultOutput
	}
	output = absCleanFrom(cwdAbs, output)

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = 1
	}
	if concurrency < 1 || concurrency > MaxConcurrency {
		return EffectiveConfig{}, invalid(fmt.Errorf("concurrency 必须在 1..%d 之间：%d", MaxConcurrency, fc.Concurrency))
	}

	rateLimit := fc.RateLimit
	switch {
	case rateLimit == 0:
		rateLimit = DefaultRateLimit
	case rateLimit < 0:
		// 负数：显式关闭限速。
		rateLimit = 0
	}
	burst := fc.Burst
	if burst < 1 {
		burst = DefaultBurst
	}

	var timeout time.Duration
	if s := strings.TrimSpace(fc.Timeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return EffectiveConfig{}, invalid(fmt.Errorf("timeout 无效：%w", err))
		}
		if d < 0 {
			return EffectiveConfig{}, invalid(fmt.Errorf("timeout 不能为负：%q", s))
		}
		timeout = d
	}

	if fc.Retries < 0 {
		return EffectiveConfig{}, invalid(fmt.Errorf("retries 不能为负：%d", fc.Retries))
	}
	retries := fc.Retries
	if retries > MaxRetries {
		retries = MaxRetries
	}

	baseURL := strings.TrimRight(strings.TrimSpace(fc.APIBaseURL), "/")
	if baseURL == "" {
		baseURL = catalog.DefaultBaseURL
	}
	if u, err := url.Parse(baseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return EffectiveConfig{}, invalid(fmt.Errorf("api_base_url 必须是 http/https 地址：%q", baseURL))
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, invalid(fmt.Errorf("proxy.url 无效：%w", err))
		}
	}

	pub := fc.Publish
	if (strings.TrimSpace(pub.Bucket) != "" || strings.TrimSpace(pub.Endpoint) != "") && !pub.Enabled() {
		return EffectiveConfig{}, invalid(fmt.Errorf("publish 需要同时设置 endpoint 与 bucket"))
	}

	return EffectiveConfig{
		Path:        modsPath,
		Output:      output,
		Exclusive:   cli.Exclusive || fc.Exclusive,
		Potato:      cli.Potato || fc.Potato,
		Build:       cli.Build || fc.Build,
		APIBaseURL:  baseURL,
		Concurrency: concurrency,
		RateLimit:   rateLimit,
		Burst:       burst,
		Timeout:     timeout,
		Retries:     retries,
		ProxyURL:    proxyURL,
		Publish:     pub,
		ConfigFile:  cfgPath,
	}, nil
}

// ResolveModsPath 把 -path 的值解析为 mods 目录：
// 绝对路径原样使用；否则视为 profile 名称，映射到 <profilesRoot>/<name>/mods。
func ResolveModsPath(p, profilesRoot string) string {
	p = strings.TrimSpace(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(profilesRoot, p, "mods")
}

// DefaultProfilesRoot 返回当前平台上 Modrinth App 的 profiles 目录。
func DefaultProfilesRoot() string {
	home, _ := os.UserHomeDir()
	return profilesRootFor(runtime.GOOS, os.Getenv, home)
}

func profilesRootFor(goos string, getenv func(string) string, home string) string {
	var base string
	switch goos {
	case "windows":
		base = getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
	case "darwin":
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = getenv("XDG_DATA_HOME")
		if base == "" {
			base = filepath.Join(home, ".local", "share")
		}
	}
	return filepath.Join(base, "ModrinthApp", "profiles")
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件（先做 ${VAR} 环境变量展开）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
// 未知字段视为错误，避免拼写错误被静默忽略。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}

	expanded := os.ExpandEnv(string(b))
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
