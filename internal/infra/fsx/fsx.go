package fsx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 rename 失败。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望目录但实际是文件）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// Rename 把同目录下的临时文件替换到最终路径（atomic writes 的最后一步）。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		return fmt.Errorf("替换 %q 失败：%w", dst, err)
	}
	return nil
}

// DirExists 是显式的存在性查询：路径存在且是目录才返回 true。
// 其他任何情况（不存在、是文件、stat 失败）都返回 false。
func DirExists(dir string) bool {
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir()
}

// ResetDir 清空并重建 dir。
// dir 若是一个普通文件则返回 PathTypeConflictError，而不是静默删除。
func ResetDir(dir string) error {
	fi, err := os.Lstat(dir)
	switch {
	case err == nil && !fi.IsDir():
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	case err == nil:
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	case !os.IsNotExist(err):
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// CopyFile 把 src 复制为 dstDir/name（临时文件 + rename；目标已存在则覆盖）。
func CopyFile(src, dstDir, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if fi, err := os.Lstat(filepath.Join(dstDir, name)); err == nil && fi.IsDir() {
		return &PathTypeConflictError{Path: filepath.Join(dstDir, name), Want: "file", Got: "dir"}
	}
	return writeAtomic(dstDir, name, in, 0o644)
}

// WriteFileAtomicReplace 写入并覆盖同名文件（尽量保持原子性；Windows 上为 best-effort）。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return writeAtomic(dir, name, bytes.NewReader(data), 0o644)
}

func writeAtomic(dir, name string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 同目录临时文件，保证 rename 的原子性。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
