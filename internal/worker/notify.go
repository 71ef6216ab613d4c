package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/errcode"
	"resumeBuilder/internal/tasks"
)

// ExportNotifyMessage 通过 Redis Pub/Sub 转发给设备的 WebSocket。
// 字段名与前端解析保持一致。
type ExportNotifyMessage struct {
	Type          string       `json:"type"`
	Status        string       `json:"status"`
	ExportID      string       `json:"export_id"`
	ObjectKey     string       `json:"object_key,omitempty"`
	CorrelationID string       `json:"correlation_id"`
	ErrorCode     errcode.Code `json:"error_code"`
	ErrorMessage  string       `json:"error_message"`
}

const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Publisher 发布 Redis 消息。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

func publishNotify(ctx context.Context, pub Publisher, deviceID string, msg ExportNotifyMessage) error {
	msg.Type = "export"
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := tasks.NotifyChannel(deviceID)
	if err := pub.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
