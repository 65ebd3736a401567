package domain

// ModFile 描述源目录中的一个 mod 文件。AbsPath 必须是 clean + absolute。
type ModFile struct {
	Name    string
	AbsPath string
	Size    int64
}
