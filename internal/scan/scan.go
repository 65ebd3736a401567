package scan

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/John-Robertt/modsort/internal/domain"
)

// ScanMods 列出 dir 下（非递归）的所有非目录条目。
//
// 规则：
// - 顺序即 os.ReadDir 的顺序（按文件名排序），保证输出稳定
// - 跟随符号链接判断类型：指向目录的链接同样跳过
// - dir 不存在/不可读直接返回错误（上层视为致命）
//
// 扫描阶段只做 stat，不读文件内容；SHA1 由 HashFile 单独计算。
func ScanMods(dir string) ([]domain.ModFile, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	abs = filepath.Clean(abs)

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	files := make([]domain.ModFile, 0, len(entries))
	for _, e := range entries {
		p := filepath.Join(abs, e.Name())
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if fi.IsDir() {
			continue
		}
		files = append(files, domain.ModFile{
			Name:    e.Name(),
			AbsPath: p,
			Size:    fi.Size(),
		})
	}
	return files, nil
}

// HashFile 流式计算文件内容的 SHA-1（小写 hex）。
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("读取 %q 失败：%w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
