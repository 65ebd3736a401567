package archive

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatSize 以 1024 为底选择单位（floor(log1024(n))），数值四舍五入为整数。
// 显示值约定不带小数，所以落在两个整数之间的大小取最近的整数：
// 1536 是 1.5 KB，输出 "2 KB"（0.5 向上取整），不是 "1.5 KB"。
// 0 -> "0 Byte"，1048576 -> "1 MB"。
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 Byte"
	}
	// 用整数比较求 floor(log1024(n))，避免浮点误差把 1024^k 判到下一级。
	i := 0
	for i < len(sizeUnits)-1 && n >= int64(1)<<(10*(i+1)) {
		i++
	}
	v := math.Floor(float64(n)/float64(int64(1)<<(10*i)) + 0.5)
	return strconv.FormatFloat(v, 'f', 0, 64) + " " + sizeUnits[i]
}
