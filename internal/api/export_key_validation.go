package api

import (
	"strings"
	"unicode/utf8"

	"resumeBuilder/internal/tasks"
)

// isValidExportObjectKey 只接受当前设备导出目录下的 PDF 文件。
func isValidExportObjectKey(deviceID, key string) bool {
	if key == "" || len(key) > 200 || !utf8.ValidString(key) {
		return false
	}
	if !strings.HasPrefix(key, tasks.ExportPrefix(deviceID)) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(key), ".pdf")
}
