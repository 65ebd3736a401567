// Package archive 把选定的输出目录打包为可复现的 zip。
//
// 约定：
//   - 每个来源目录作为 zip 内的一个顶层目录（例如 client/、potato/）
//   - 条目按路径字典序写入，时间戳固定，压缩级别为 Deflate 最高级
//   - 先写同目录临时文件，成功后 rename 到最终路径
package archive

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/modsort/internal/infra/fsx"
)

// FixedZipTime 保证逐字节可复现（1980-01-01 UTC，zip 能表示的最早时间）。
var FixedZipTime = time.Unix(315532800, 0).UTC()

// Source 是一个待打包目录；Name 为 zip 内的顶层条目名。
type Source struct {
	Name string
	Dir  string
}

// Result 描述打包结果。Entries 只含文件条目（不含目录条目）。
type Result struct {
	Path    string
	Size    int64
	Entries []string
}

// Build 把 sources 打包到 zipPath（已存在则覆盖）。
func Build(zipPath string, sources []Source) (Result, error) {
	dir := filepath.Dir(zipPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(zipPath)+".tmp-*")
	if err != nil {
		return Result{}, err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	zw := zip.NewWriter(tmp)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	var entries []string
	for _, src := range sources {
		names, err := addDir(zw, src)
		if err != nil {
			_ = zw.Close()
			return Result{}, err
		}
		entries = append(entries, names...)
	}
	if err := zw.Close(); err != nil {
		return Result{}, err
	}
	if err := tmp.Sync(); err != nil {
		return Result{}, err
	}
	if err := tmp.Close(); err != nil {
		return Result{}, err
	}
	if err := fsx.Rename(tmpName, zipPath); err != nil {
		return Result{}, err
	}

	fi, err := os.Stat(zipPath)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: zipPath, Size: fi.Size(), Entries: entries}, nil
}

func addDir(zw *zip.Writer, src Source) ([]string, error) {
	prefix := strings.Trim(filepath.ToSlash(src.Name), "/")
	if prefix == "" {
		return nil, fmt.Errorf("打包来源名称不能为空：%q", src.Dir)
	}
	root := filepath.Clean(src.Dir)

	var names []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := prefix
		if rel != "." {
			name = prefix + "/" + filepath.ToSlash(rel)
		}

		if d.IsDir() {
			h := &zip.FileHeader{Name: name + "/", Method: zip.Store, Modified: FixedZipTime}
			h.SetMode(fs.ModeDir | 0o755)
			_, err := zw.CreateHeader(h)
			return err
		}
		if !d.Type().IsRegular() {
			// 符号链接等特殊文件不打包。
			return nil
		}
		if err := addFile(zw, name, path); err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	return names, err
}

func addFile(zw *zip.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: FixedZipTime}
	h.SetMode(0o644)
	w, err := zw.CreateHeader(h)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
