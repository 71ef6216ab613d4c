package errcode

// Code 是导出通知携带的结果码。
//   - 0：导出成功
//   - 4xxx：PDF 可用，但附属产物缺失（例如缩略图）
//   - 5xxx：导出失败，不会再重试
type Code int

const (
	OK              Code = 0
	ResourceMissing Code = 4004
	SystemError     Code = 5000
)
