package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"resumeBuilder/internal/metrics"
	"resumeBuilder/internal/resume"
)

// ErrNotFound 表示快照槽位为空。
var ErrNotFound = errors.New("snapshot not found")

// Backend 是快照的持久化后端，按 key 读写原始字节。
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Slots 为每个设备分配固定的单槽快照，key 为 "<prefix>:<deviceID>"。
type Slots struct {
	backend Backend
	prefix  string
	logger  *slog.Logger
}

// NewSlots 构造快照工厂，logger 为空时使用 slog.Default()。
func NewSlots(backend Backend, prefix string, logger *slog.Logger) *Slots {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slots{backend: backend, prefix: prefix, logger: logger}
}

// ForDevice 返回指定设备的快照槽位。
func (s *Slots) ForDevice(deviceID string) *Slot {
	key := fmt.Sprintf("%s:%s", s.prefix, deviceID)
	return &Slot{
		backend: s.backend,
		key:     key,
		logger:  s.logger.With(slog.String("snapshot_key", key)),
	}
}

// Slot 是单个设备的本地快照，实现 editor.Persister。
type Slot struct {
	backend Backend
	key     string
	logger  *slog.Logger
}

// Key 返回槽位的存储 key。
func (s *Slot) Key() string { return s.key }

// Write 序列化并覆盖快照。失败只记录日志，内存状态仍是权威数据。
func (s *Slot) Write(ctx context.Context, doc resume.Document) {
	data, err := json.Marshal(doc)
	if err != nil {
		metrics.SnapshotWriteFailed()
		s.logger.Error("encode snapshot failed", slog.Any("error", err))
		return
	}
	if err := s.backend.Save(ctx, s.key, data); err != nil {
		metrics.SnapshotWriteFailed()
		s.logger.Warn("write snapshot failed", slog.Any("error", err))
	}
}

// Read 读取快照；不存在、后端不可用或内容损坏时返回 fallback。
func (s *Slot) Read(ctx context.Context, fallback resume.Document) resume.Document {
	data, err := s.backend.Load(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fallback
		}
		metrics.SnapshotReadFallback("unavailable")
		s.logger.Warn("read snapshot failed, using default", slog.Any("error", err))
		return fallback
	}

	doc, err := resume.Decode(data)
	if err != nil {
		metrics.SnapshotReadFallback("malformed")
		s.logger.Warn("stored snapshot is malformed, using default", slog.Any("error", err))
		return fallback
	}
	return doc
}
