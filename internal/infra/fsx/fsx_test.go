package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()

	if err := WriteFileAtomicReplace(dir, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	assertNoTemp(t, dir, "a.txt")
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	err := WriteFileAtomicReplace(dir, "a.txt", []byte("hello"))
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("rename 失败应保留原始错误，实际：%v", err)
	}
	if !strings.Contains(err.Error(), "a.txt") {
		t.Fatalf("错误信息应包含目标路径：%v", err)
	}

	entries, rerr := os.ReadDir(dir)
	if rerr != nil {
		t.Fatalf("ReadDir 失败：%v", rerr)
	}
	for _, e := range entries {
		if e.Name() == "a.txt" {
			t.Fatalf("不应写出最终文件：%q", e.Name())
		}
	}
	assertNoTemp(t, dir, "a.txt")
}

func TestCopyFile_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jar")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	dstDir := filepath.Join(dir, "out", "client")
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(filepath.Join(dstDir, "src.jar"), []byte("old"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	if err := CopyFile(src, dstDir, "src.jar"); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, _ := os.ReadFile(filepath.Join(dstDir, "src.jar"))
	if string(b) != "new" {
		t.Fatalf("期望覆盖为 new，实际 %q", string(b))
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("复制不应影响源文件：%v", err)
	}
	assertNoTemp(t, dstDir, "src.jar")
}

func TestCopyFile_TargetIsDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jar")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	dstDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(filepath.Join(dstDir, "a.jar"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	err := CopyFile(src, dstDir, "a.jar")
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(filepath.Join(dir, "nope.jar"), dir, "nope.jar"); !os.IsNotExist(err) {
		t.Fatalf("期望 not-exist 错误，实际：%v", err)
	}
}

func TestResetDir_PurgesContents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "client")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stale.jar"), []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	if err := ResetDir(dir); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("期望目录为空，实际 %d 项", len(entries))
	}
}

func TestResetDir_CreatesMissingAndRejectsFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a", "b")
	if err := ResetDir(dir); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !DirExists(dir) {
		t.Fatalf("期望目录被创建")
	}

	file := filepath.Join(root, "f")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if err := ResetDir(file); !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%v", err)
	}
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("冲突时不应删除文件：%v", err)
	}
}

func TestDirExists(t *testing.T) {
	root := t.TempDir()
	if !DirExists(root) {
		t.Fatalf("期望 true")
	}
	if DirExists(filepath.Join(root, "missing")) {
		t.Fatalf("不存在的目录应返回 false")
	}
	file := filepath.Join(root, "f")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if DirExists(file) {
		t.Fatalf("文件应返回 false")
	}
}

func assertNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}
